package hipaa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// Sealer provides AES-256-GCM encryption of health data blobs at rest. The
// blob's storage key is bound as additional authenticated data, so a
// ciphertext copied under another key fails to open.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer creates a Sealer with the given 32-byte AES-256 key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("sealer: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("sealer: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("sealer: create GCM: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal encrypts data for the named key and returns the nonce prepended to
// the ciphertext.
func (s *Sealer) Seal(name string, data []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("seal %s: generate nonce: %w", name, err)
	}

	// Seal appends the ciphertext to nonce, so the result is nonce + ciphertext.
	return s.aead.Seal(nonce, nonce, data, []byte(name)), nil
}

// Open extracts the nonce from the front of data and decrypts the remainder.
func (s *Sealer) Open(name string, data []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("open %s: ciphertext too short", name)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return plaintext, nil
}
