package encryption

import (
	"errors"
	"fmt"
	"io"
)

// Field sizes of the artifact header.
const (
	SaltSize  = 16
	NonceSize = 12
	TagSize   = 16
	KeySize   = 32
)

// Field offsets of the artifact header. They are a wire contract shared with every existing artifact.
const (
	offsetSalt        = 0
	offsetWrapNonce   = offsetSalt + SaltSize
	offsetWrapTag     = offsetWrapNonce + NonceSize
	offsetWrappedKey  = offsetWrapTag + TagSize
	offsetStreamNonce = offsetWrappedKey + KeySize
	offsetStreamTag   = offsetStreamNonce + NonceSize

	// HeaderSize is the number of bytes preceding the encrypted payload.
	HeaderSize = offsetStreamTag + TagSize
)

// StreamTagOffset is where the payload tag lives; it is rewritten once the payload is complete.
const StreamTagOffset = offsetStreamTag

// Envelope carries the password-wrapped data key.
type Envelope struct {
	Salt       [SaltSize]byte
	WrapNonce  [NonceSize]byte
	WrapTag    [TagSize]byte
	WrappedKey [KeySize]byte
}

// Header is the fixed preamble of every artifact.
type Header struct {
	Envelope

	StreamNonce [NonceSize]byte
	StreamTag   [TagSize]byte
}

// MarshalBinary encodes the header in wire order.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)

	copy(buf[offsetSalt:], h.Salt[:])
	copy(buf[offsetWrapNonce:], h.WrapNonce[:])
	copy(buf[offsetWrapTag:], h.WrapTag[:])
	copy(buf[offsetWrappedKey:], h.WrappedKey[:])
	copy(buf[offsetStreamNonce:], h.StreamNonce[:])
	copy(buf[offsetStreamTag:], h.StreamTag[:])

	return buf, nil
}

// UnmarshalBinary decodes exactly HeaderSize bytes.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedHeader, HeaderSize, len(data))
	}

	copy(h.Salt[:], data[offsetSalt:offsetWrapNonce])
	copy(h.WrapNonce[:], data[offsetWrapNonce:offsetWrapTag])
	copy(h.WrapTag[:], data[offsetWrapTag:offsetWrappedKey])
	copy(h.WrappedKey[:], data[offsetWrappedKey:offsetStreamNonce])
	copy(h.StreamNonce[:], data[offsetStreamNonce:offsetStreamTag])
	copy(h.StreamTag[:], data[offsetStreamTag:HeaderSize])

	return nil
}

// WriteTo writes the encoded header to w.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	buf, err := h.MarshalBinary()
	if err != nil {
		return 0, err
	}

	n, err := w.Write(buf)
	if err != nil {
		return int64(n), fmt.Errorf("writing header: %w", err)
	}

	return int64(n), nil
}

// ReadHeader consumes exactly HeaderSize bytes from r.
// A short artifact is reported as ErrMalformedHeader rather than retried.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)

	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: artifact shorter than %d bytes", ErrMalformedHeader, HeaderSize)
		}

		return nil, fmt.Errorf("reading header: %w", err)
	}

	var h Header
	if err := h.UnmarshalBinary(buf); err != nil {
		return nil, err
	}

	return &h, nil
}
