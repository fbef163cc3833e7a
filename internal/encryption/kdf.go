package encryption

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// KDF holds the scrypt cost parameters used to turn a password into a wrapping key.
// The parameters are not stored in the artifact, so encryption and decryption must agree on them.
type KDF struct {
	N int
	R int
	P int
}

// DefaultKDF is the work factor every artifact is produced with.
//
//nolint:gochecknoglobals,mnd
var DefaultKDF = KDF{N: 1 << 20, R: 8, P: 1}

// Derive stretches password into a 32-byte key.
// A nil salt is replaced with SaltSize fresh bytes read from rand; the salt in use is returned.
//
// The salt is fed to scrypt in its legacy textual form and the password as Latin-1,
// see legacySalt and legacyPassword.
func (k KDF) Derive(password string, salt []byte, rand io.Reader) (key, usedSalt []byte, err error) {
	if salt == nil {
		salt = make([]byte, SaltSize)
		if _, err := io.ReadFull(rand, salt); err != nil {
			return nil, nil, fmt.Errorf("generating salt: %w", err)
		}
	}

	if len(salt) != SaltSize {
		return nil, nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrMalformedHeader, SaltSize, len(salt))
	}

	key, err = scrypt.Key(legacyPassword(password), legacySalt(salt), k.N, k.R, k.P, KeySize)
	if err != nil {
		return nil, nil, fmt.Errorf("deriving key: %w", err)
	}

	return key, salt, nil
}

// legacySalt renders salt the way a Python bytes literal is printed, e.g. b'\x00A\n'.
// Existing artifacts were produced by deriving from that representation rather than the raw bytes,
// and changing it would make them undecryptable.
func legacySalt(salt []byte) []byte {
	quote := byte('\'')
	if strings.IndexByte(string(salt), '\'') >= 0 && strings.IndexByte(string(salt), '"') < 0 {
		quote = '"'
	}

	const hexDigits = "0123456789abcdef"

	out := make([]byte, 0, 3+4*len(salt))
	out = append(out, 'b', quote)

	for _, c := range salt {
		switch {
		case c == quote || c == '\\':
			out = append(out, '\\', c)
		case c == '\t':
			out = append(out, '\\', 't')
		case c == '\n':
			out = append(out, '\\', 'n')
		case c == '\r':
			out = append(out, '\\', 'r')
		case c < ' ' || c >= 0x7f:
			out = append(out, '\\', 'x', hexDigits[c>>4], hexDigits[c&0x0f])
		default:
			out = append(out, c)
		}
	}

	return append(out, quote)
}

// legacyPassword encodes password as Latin-1.
// Passwords with runes beyond U+00FF have no Latin-1 form and are used as UTF-8.
func legacyPassword(password string) []byte {
	out := make([]byte, 0, len(password))

	for _, r := range password {
		if r > 0xff {
			return []byte(password)
		}

		out = append(out, byte(r))
	}

	return out
}
