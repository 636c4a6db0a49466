package core

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

// Symmetric encryption and key derivation (spec.md §4.B), used to protect
// key material handed across the (out-of-scope) wallet signer interface.
// Grounded on core/security.go's XChaCha20-Poly1305 AEAD wrapper, adapted
// to AES-256-GCM per spec; scrypt is the same KDF family the teacher's
// wallet keystore would use.

const scryptKeyLen = 32 // AES-256 key size

// ScryptDeriveKey derives a 32-byte AES-256 key from passphrase and salt
// using the standard scrypt cost parameters (N=2^15, r=8, p=1).
func ScryptDeriveKey(passphrase, salt []byte) ([]byte, error) {
	return scrypt.Key(passphrase, salt, 1<<15, 8, 1, scryptKeyLen)
}

// AES256GCMEncrypt encrypts plaintext with a 32-byte key, returning
// nonce||ciphertext||tag.
func AES256GCMEncrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != scryptKeyLen {
		return nil, fmt.Errorf("aes256: key must be %d bytes, got %d", scryptKeyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// AES256GCMDecrypt reverses AES256GCMEncrypt.
func AES256GCMDecrypt(key, sealed []byte) ([]byte, error) {
	if len(key) != scryptKeyLen {
		return nil, fmt.Errorf("aes256: key must be %d bytes, got %d", scryptKeyLen, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("aes256: ciphertext too short")
	}
	nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, nil)
}
