// Package sealbox encrypts small documents at rest under a passphrase.
package sealbox

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeyLen  = 32
	SaltLen = 16

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
)

// ErrOpen is returned when a box cannot be opened (wrong passphrase or tampered data).
var ErrOpen = errors.New("sealbox: cannot open")

// Box is a sealed document: the KDF salt and nonce||ciphertext.
type Box struct {
	Salt []byte `json:"salt"`
	Data []byte `json:"data"`
}

// Rand returns n cryptographically secure random bytes.
func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// DeriveKey derives a key from passphrase and salt using Argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// Seal encrypts plaintext under a fresh salt. aad binds the box to its location.
func Seal(passphrase, plaintext, aad []byte) (Box, error) {
	salt, err := Rand(SaltLen)
	if err != nil {
		return Box{}, err
	}
	aead, err := chacha20poly1305.NewX(DeriveKey(passphrase, salt))
	if err != nil {
		return Box{}, err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return Box{}, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, aad)...)
	return Box{Salt: salt, Data: out}, nil
}

// Open decrypts a box sealed with the same passphrase and aad.
func Open(passphrase []byte, b Box, aad []byte) ([]byte, error) {
	if len(b.Data) < chacha20poly1305.NonceSizeX || len(b.Salt) == 0 {
		return nil, ErrOpen
	}
	aead, err := chacha20poly1305.NewX(DeriveKey(passphrase, b.Salt))
	if err != nil {
		return nil, err
	}
	nonce := b.Data[:chacha20poly1305.NonceSizeX]
	pt, err := aead.Open(nil, nonce, b.Data[chacha20poly1305.NonceSizeX:], aad)
	if err != nil {
		return nil, ErrOpen
	}
	return pt, nil
}
