package sqlite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// sealer encrypts credential values before they touch disk. A stolen
// database file without the device secret yields only ciphertext.
type sealer struct {
	aead cipher.AEAD
}

var errSecretRequired = errors.New("device secret is required")

// newSealer derives a 256-bit sealing key from the host-supplied device
// secret via HKDF-SHA256 and prepares an AES-GCM AEAD around it.
func newSealer(deviceSecret []byte) (*sealer, error) {
	if len(deviceSecret) == 0 {
		return nil, errSecretRequired
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, deviceSecret, nil, []byte("credential-seal"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &sealer{aead: aead}, nil
}

// seal encrypts plaintext, binding the credential key as associated data
// so a value copied between rows fails to open.
func (s *sealer) seal(credKey string, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	ct := s.aead.Seal(nil, nonce, plaintext, []byte(credKey))
	return append(nonce, ct...), nil
}

// open decrypts a sealed blob produced by seal with the same credential key.
func (s *sealer) open(credKey string, blob []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(blob) < ns {
		return nil, errors.New("sealed value too short")
	}
	plaintext, err := s.aead.Open(nil, blob[:ns], blob[ns:], []byte(credKey))
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", err)
	}
	return plaintext, nil
}
