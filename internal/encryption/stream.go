package encryption

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/poly1305"
)

// streamCipher is ChaCha20-Poly1305 (RFC 8439, empty associated data) computed incrementally,
// so payloads of any size can be processed one chunk at a time.
// Its output is identical to a one-shot Seal split into ciphertext and tag.
type streamCipher struct {
	stream *chacha20.Cipher
	mac    *poly1305.MAC
	length uint64
}

func newStreamCipher(key, nonce []byte) (*streamCipher, error) {
	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, fmt.Errorf("creating stream cipher: %w", err)
	}

	// Block 0 keys the authenticator, the payload starts at block 1.
	var polyKey [32]byte

	stream.XORKeyStream(polyKey[:], polyKey[:])
	stream.SetCounter(1)

	return &streamCipher{
		stream: stream,
		mac:    poly1305.New(&polyKey),
	}, nil
}

// encrypt writes the ciphertext of src into dst and authenticates it. dst and src may overlap entirely.
func (s *streamCipher) encrypt(dst, src []byte) {
	s.stream.XORKeyStream(dst, src)
	s.mac.Write(dst[:len(src)]) //nolint:errcheck // poly1305.MAC.Write never fails
	s.length += uint64(len(src))
}

// decrypt authenticates src and writes its plaintext into dst. dst and src may overlap entirely.
func (s *streamCipher) decrypt(dst, src []byte) {
	s.mac.Write(src) //nolint:errcheck // poly1305.MAC.Write never fails
	s.stream.XORKeyStream(dst, src)
	s.length += uint64(len(src))
}

// authenticate feeds src to the authenticator only.
func (s *streamCipher) authenticate(src []byte) {
	s.mac.Write(src) //nolint:errcheck // poly1305.MAC.Write never fails
	s.length += uint64(len(src))
}

// finish closes the authenticator input with padding and lengths. It must be called once.
func (s *streamCipher) finish() {
	var pad [16]byte

	if rem := s.length % 16; rem != 0 {
		s.mac.Write(pad[:16-rem]) //nolint:errcheck // poly1305.MAC.Write never fails
	}

	var lengths [16]byte

	// Associated data length stays zero.
	binary.LittleEndian.PutUint64(lengths[8:], s.length)
	s.mac.Write(lengths[:]) //nolint:errcheck // poly1305.MAC.Write never fails
}

// tag finalizes and returns the authentication tag.
func (s *streamCipher) tag() []byte {
	s.finish()

	return s.mac.Sum(nil)
}

// verify finalizes and compares the tag in constant time.
func (s *streamCipher) verify(expected []byte) bool {
	s.finish()

	return s.mac.Verify(expected)
}
