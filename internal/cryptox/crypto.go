// Package cryptox seals byte blobs with a passphrase: the key is derived with
// argon2id and the data is encrypted with AES-256-GCM.
//
// A sealed blob is laid out as
//
//	magic (8) | salt (16) | nonce (12) | ciphertext+tag
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize = 16
	keySize  = 32
)

var magic = []byte("OFSYNC01")

var (
	ErrNotSealed = errors.New("data is not sealed")
	ErrDecrypt   = errors.New("wrong passphrase or corrupted data")
)

// replaced in tests
var randRead = rand.Read

// DeriveKey stretches passphrase into a 256-bit key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// IsSealed reports whether data starts with the sealed-blob header.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Seal encrypts plaintext under passphrase with a fresh salt and nonce.
func Seal(plaintext, passphrase []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := randRead(salt); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}

	aesgcm, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := randRead(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	out := make([]byte, 0, len(magic)+saltSize+len(nonce)+len(plaintext)+aesgcm.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aesgcm.Seal(out, nonce, plaintext, magic), nil
}

// Open reverses Seal.
func Open(data, passphrase []byte) ([]byte, error) {
	if !IsSealed(data) {
		return nil, ErrNotSealed
	}
	rest := data[len(magic):]
	if len(rest) < saltSize {
		return nil, ErrDecrypt
	}
	salt, rest := rest[:saltSize], rest[saltSize:]

	aesgcm, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	if len(rest) < aesgcm.NonceSize()+aesgcm.Overhead() {
		return nil, ErrDecrypt
	}
	nonce, ciphertext := rest[:aesgcm.NonceSize()], rest[aesgcm.NonceSize():]

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, magic)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
