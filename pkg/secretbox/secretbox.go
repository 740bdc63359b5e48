// Package secretbox seals provider credentials before they are written to
// the database. Sealed values are base64(nonce || ciphertext) with an
// "sb1:" prefix so plaintext rows written before a key was configured are
// still readable.
package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const prefix = "sb1:"

// Box seals and opens strings. A Box without a key passes values through.
type Box struct {
	key []byte
}

// New builds a Box. An empty key disables sealing.
func New(key []byte) (*Box, error) {
	if len(key) == 0 {
		return &Box{}, nil
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sealing key must be %d bytes", chacha20poly1305.KeySize)
	}
	return &Box{key: key}, nil
}

// FromEnv reads TOKEN_SEALING_KEY (base64, 32 bytes).
func FromEnv() (*Box, error) {
	raw := strings.TrimSpace(os.Getenv("TOKEN_SEALING_KEY"))
	if raw == "" {
		return New(nil)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, errors.New("TOKEN_SEALING_KEY must be valid base64")
	}
	return New(key)
}

func (b *Box) Enabled() bool { return b != nil && len(b.key) > 0 }

func (b *Box) Seal(plaintext string) (string, error) {
	if !b.Enabled() || plaintext == "" {
		return plaintext, nil
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *Box) Open(value string) (string, error) {
	if !strings.HasPrefix(value, prefix) {
		return value, nil
	}
	if !b.Enabled() {
		return "", errors.New("sealed value but no sealing key configured")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, prefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("sealed value too short")
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plain), nil
}
