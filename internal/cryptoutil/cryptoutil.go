// Package cryptoutil holds the authenticated-encryption primitive shared by
// the vault and the config store: PBKDF2-SHA256 key derivation feeding
// AES-256-GCM.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KDFIterations is fixed at 100k per the key-derivation requirement;
	// do not lower it for speed.
	KDFIterations = 100000
	KeyLen        = 32
	SaltLen       = 32
)

var ErrOpenFailed = errors.New("cryptoutil: decryption failed (wrong key or corrupted data)")

// NewSalt returns a fresh random salt suitable for DeriveKey.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("cryptoutil: generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey runs PBKDF2-HMAC-SHA256 over secret and salt.
func DeriveKey(secret []byte, salt []byte) []byte {
	return pbkdf2.Key(secret, salt, KDFIterations, KeyLen, sha256.New)
}

// Seal encrypts plaintext under key, returning a fresh nonce and the
// ciphertext (with GCM auth tag appended).
func Seal(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptoutil: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptoutil: new gcm: %w", err)
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("cryptoutil: generate nonce: %w", err)
	}
	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

// Open decrypts ciphertext produced by Seal.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: new gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

// ZeroBytes overwrites b in place. Best-effort hygiene for key material
// that's done being used.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
