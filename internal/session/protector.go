package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
)

// Protector seals and opens the serialized credential blob. Implementations
// provide whatever at-rest protection the platform offers; the plain
// implementation is the documented fallback for platforms without any.
type Protector interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// AESGCMProtector seals blobs with AES-256-GCM using a key kept in a local
// file. This is best-effort at-rest protection, not a substitute for an OS
// keystore.
type AESGCMProtector struct {
	aead cipher.AEAD
}

// NewAESGCMProtector loads the key from keyFile, generating and writing a new
// 32-byte key when the file does not exist.
func NewAESGCMProtector(keyFile string) (*AESGCMProtector, error) {
	key, err := loadOrCreateKey(keyFile)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &AESGCMProtector{aead: aead}, nil
}

func loadOrCreateKey(keyFile string) ([]byte, error) {
	data, err := os.ReadFile(keyFile)
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(string(data))
		if decErr != nil || len(key) != 32 {
			return nil, fmt.Errorf("session key file %s is corrupt", keyFile)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read session key: %w", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	if dir := filepath.Dir(keyFile); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create key directory: %w", err)
		}
	}
	if err := os.WriteFile(keyFile, []byte(base64.StdEncoding.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("write session key: %w", err)
	}
	return key, nil
}

func (p *AESGCMProtector) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := p.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (p *AESGCMProtector) Open(sealed string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("decode sealed blob: %w", err)
	}
	if len(raw) < p.aead.NonceSize() {
		return nil, fmt.Errorf("sealed blob too short")
	}
	nonce, ciphertext := raw[:p.aead.NonceSize()], raw[p.aead.NonceSize():]
	plaintext, err := p.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed blob: %w", err)
	}
	return plaintext, nil
}

// PlainProtector stores the blob unprotected. Used only when no key material
// is available; a known weakening, kept so sign-in still works there.
type PlainProtector struct{}

func (PlainProtector) Seal(plaintext []byte) (string, error) {
	return string(plaintext), nil
}

func (PlainProtector) Open(sealed string) ([]byte, error) {
	return []byte(sealed), nil
}
