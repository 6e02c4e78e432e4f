package joseutil

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v3"
)

// Encrypter produces compact JWE tokens that only this service can read.
// The content key is derived from the configured secret with SHA-256 and used
// directly with A256GCM.
type Encrypter struct {
	key []byte
	enc jose.Encrypter
}

func (e *Encrypter) Encrypt(plaintext []byte) (string, error) {
	obj, err := e.enc.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return obj.CompactSerialize()
}

// Decrypt returns the plaintext of a token produced by Encrypt. Malformed,
// tampered or foreign tokens all yield ErrDecryptFailed.
func (e *Encrypter) Decrypt(token string) ([]byte, error) {
	obj, err := jose.ParseEncrypted(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}
	if obj.Header.Algorithm != string(jose.DIRECT) {
		return nil, ErrDecryptFailed
	}
	plaintext, err := obj.Decrypt(e.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}
	return plaintext, nil
}

func (e *Encrypter) EncryptJSON(val any) (string, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return "", err
	}
	return e.Encrypt(data)
}

func (e *Encrypter) DecryptJSON(token string, val any) error {
	data, err := e.Decrypt(token)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, val); err != nil {
		return fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}
	return nil
}

func NewEncrypter(secret string) (*Encrypter, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}
	sum := sha256.Sum256([]byte(secret))
	key := sum[:]
	opts := (&jose.EncrypterOptions{}).WithContentType("JWT")
	enc, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{Algorithm: jose.DIRECT, Key: key}, opts)
	if err != nil {
		return nil, err
	}
	return &Encrypter{key: key, enc: enc}, nil
}
