// Package encryption seals small secrets with AES-GCM.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const gcmPrefix = "gcm1"

var (
	ErrShortCiphertext = errors.New("encryption: ciphertext too short")
	ErrUnknownFormat   = errors.New("encryption: unknown ciphertext format")
)

// ParseKey decodes a hex encoded AES-128, AES-192 or AES-256 key.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("encryption: key is not hex: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	}
	return nil, fmt.Errorf("encryption: key must be 16, 24 or 32 bytes, got %d", len(key))
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal returns prefix || nonce || ciphertext.
func Seal(value string, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(gcmPrefix)+len(nonce)+len(value)+gcm.Overhead())
	out = append(out, gcmPrefix...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, []byte(value), nil), nil
}

func Open(sealed []byte, key []byte) (string, error) {
	if len(sealed) < len(gcmPrefix) || string(sealed[:len(gcmPrefix)]) != gcmPrefix {
		return "", ErrUnknownFormat
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	body := sealed[len(gcmPrefix):]
	if len(body) < gcm.NonceSize() {
		return "", ErrShortCiphertext
	}
	plain, err := gcm.Open(nil, body[:gcm.NonceSize()], body[gcm.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("encryption: %w", err)
	}
	return string(plain), nil
}
