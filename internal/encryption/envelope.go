package encryption

import (
	"bytes"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"github.com/tink-crypto/tink-go/v2/aead"
	"github.com/tink-crypto/tink-go/v2/insecurecleartextkeyset"
	"github.com/tink-crypto/tink-go/v2/keyset"
	chachapb "github.com/tink-crypto/tink-go/v2/proto/chacha20_poly1305_go_proto"
	tinkpb "github.com/tink-crypto/tink-go/v2/proto/tink_go_proto"
	"github.com/tink-crypto/tink-go/v2/tink"

	"google.golang.org/protobuf/proto"
)

const chacha20Poly1305TypeURL = "type.googleapis.com/google.crypto.tink.ChaCha20Poly1305Key"

// wrapKey generates a fresh data key and seals it under a key derived from password.
// The caller owns the returned data key and must wipe it.
func (p *Processor) wrapKey(password string) (Envelope, []byte, error) {
	var env Envelope

	dataKey := make([]byte, KeySize)
	if _, err := io.ReadFull(p.rand, dataKey); err != nil {
		return env, nil, fmt.Errorf("generating data key: %w", err)
	}

	wrappingKey, salt, err := p.kdf.Derive(password, nil, p.rand)
	if err != nil {
		memguard.WipeBytes(dataKey)

		return env, nil, err
	}
	defer memguard.WipeBytes(wrappingKey)

	primitive, err := newWrapAEAD(wrappingKey)
	if err != nil {
		memguard.WipeBytes(dataKey)

		return env, nil, err
	}

	// RAW output prefix: nonce || ciphertext || tag.
	sealed, err := primitive.Encrypt(dataKey, nil)
	if err != nil {
		memguard.WipeBytes(dataKey)

		return env, nil, fmt.Errorf("wrapping data key: %w", err)
	}

	if len(sealed) != NonceSize+KeySize+TagSize {
		memguard.WipeBytes(dataKey)

		return env, nil, fmt.Errorf("wrapping data key: unexpected output length %d", len(sealed))
	}

	copy(env.Salt[:], salt)
	copy(env.WrapNonce[:], sealed[:NonceSize])
	copy(env.WrappedKey[:], sealed[NonceSize:NonceSize+KeySize])
	copy(env.WrapTag[:], sealed[NonceSize+KeySize:])

	return env, dataKey, nil
}

// unwrapKey recovers the data key from env. Every verification failure maps to ErrAuthentication.
func (p *Processor) unwrapKey(env *Envelope, password string) ([]byte, error) {
	wrappingKey, _, err := p.kdf.Derive(password, env.Salt[:], p.rand)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(wrappingKey)

	primitive, err := newWrapAEAD(wrappingKey)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, NonceSize+KeySize+TagSize)
	sealed = append(sealed, env.WrapNonce[:]...)
	sealed = append(sealed, env.WrappedKey[:]...)
	sealed = append(sealed, env.WrapTag[:]...)

	dataKey, err := primitive.Decrypt(sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}

	if len(dataKey) != KeySize {
		memguard.WipeBytes(dataKey)

		return nil, ErrAuthentication
	}

	return dataKey, nil
}

// newWrapAEAD builds a ChaCha20-Poly1305 primitive around a raw 32-byte key.
func newWrapAEAD(key []byte) (tink.AEAD, error) {
	handle, err := newChaCha20Poly1305KeyHandle(key)
	if err != nil {
		return nil, err
	}

	primitive, err := aead.New(handle)
	if err != nil {
		return nil, fmt.Errorf("creating AEAD: %w", err)
	}

	return primitive, nil
}

// newChaCha20Poly1305KeyHandle creates a single-key Tink keyset with RAW output prefix,
// so ciphertexts carry no key identifier and match the artifact layout.
func newChaCha20Poly1305KeyHandle(key []byte) (*keyset.Handle, error) {
	serializedKey, err := proto.Marshal(&chachapb.ChaCha20Poly1305Key{
		Version:  0,
		KeyValue: key,
	})
	if err != nil {
		return nil, fmt.Errorf("serializing ChaCha20Poly1305Key: %w", err)
	}

	keySet := &tinkpb.Keyset{
		PrimaryKeyId: 1,
		Key: []*tinkpb.Keyset_Key{
			{
				KeyData: &tinkpb.KeyData{
					TypeUrl:         chacha20Poly1305TypeURL,
					Value:           serializedKey,
					KeyMaterialType: tinkpb.KeyData_SYMMETRIC,
				},
				Status:           tinkpb.KeyStatusType_ENABLED,
				KeyId:            1,
				OutputPrefixType: tinkpb.OutputPrefixType_RAW,
			},
		},
	}

	serializedKeyset, err := proto.Marshal(keySet)
	if err != nil {
		return nil, fmt.Errorf("serializing keyset: %w", err)
	}

	handle, err := insecurecleartextkeyset.Read(keyset.NewBinaryReader(bytes.NewReader(serializedKeyset)))
	if err != nil {
		return nil, fmt.Errorf("creating keyset handle: %w", err)
	}

	return handle, nil
}
