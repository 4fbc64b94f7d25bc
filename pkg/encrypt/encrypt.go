package encrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// KeySize AES-256 raw key length
const KeySize = 32

// 定義錯誤信息
var (
	ErrInvalidKey     = errors.New("conversation key is missing or invalid")
	ErrMissingPayload = errors.New("ciphertext and iv are required")
)

// GenerateKey create a random conversation key, base64 encoded
func GenerateKey() (string, error) {
	raw := make([]byte, KeySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ParseKey decode a base64 conversation key, anything but 32 raw bytes is rejected
func ParseKey(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, ErrInvalidKey
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != KeySize {
		return nil, ErrInvalidKey
	}
	return raw, nil
}

// Seal encrypt plaintext with AES-256-GCM, return base64 ciphertext (tag appended) and iv
func Seal(key []byte, plaintext string) (ciphertext, iv string, err error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), base64.StdEncoding.EncodeToString(nonce), nil
}

// Open decrypt a base64 ciphertext. A separately transported tag is appended before opening.
func Open(key []byte, ciphertext, iv, tag string) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}
	if ciphertext == "" || iv == "" {
		return "", ErrMissingPayload
	}

	ct, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", err)
	}
	if tag != "" {
		t, err := base64.StdEncoding.DecodeString(tag)
		if err != nil {
			return "", fmt.Errorf("decode tag: %w", err)
		}
		ct = append(ct, t...)
	}
	if len(nonce) != aead.NonceSize() {
		return "", fmt.Errorf("invalid nonce length: got %d want %d", len(nonce), aead.NonceSize())
	}

	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt ciphertext: %w", err)
	}
	return string(plain), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return aead, nil
}
