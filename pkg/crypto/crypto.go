package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"slices"
)

const (
	// NonceSize is the only nonce size accepted for templates.
	NonceSize = 12
	// TagSize is the size of the detached authentication tag.
	TagSize = 16
)

var (
	ErrInvalidNonceSize = errors.New("crypto: invalid nonce size")
	ErrInvalidTagSize   = errors.New("crypto: invalid tag size")
	ErrInvalidKeySize   = errors.New("crypto: invalid key size")
	ErrSizeMismatch     = errors.New("crypto: destination and source sizes differ")
	ErrAuthentication   = errors.New("crypto: template authentication failed")
)

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cannot create new AES cipher: %w", err)
	}

	return cipher.NewGCM(block)
}

// SealTemplate encrypts plaintext into dst with AES-GCM and writes the
// detached authentication tag into tag.
func SealTemplate(dst, tag, key, nonce, plaintext []byte) error {
	if len(nonce) != NonceSize {
		return ErrInvalidNonceSize
	}
	if len(tag) != TagSize {
		return ErrInvalidTagSize
	}
	if len(dst) != len(plaintext) {
		return ErrSizeMismatch
	}

	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	defer clear(sealed)

	copy(dst, sealed[:len(plaintext)])
	copy(tag, sealed[len(plaintext):])

	return nil
}

// OpenTemplate authenticates and decrypts ciphertext into dst. On any
// failure dst is zeroed, so it never holds partially decrypted data.
func OpenTemplate(dst, key, nonce, ciphertext, tag []byte) error {
	if err := openTemplate(dst, key, nonce, ciphertext, tag); err != nil {
		clear(dst)
		return err
	}

	return nil
}

func openTemplate(dst, key, nonce, ciphertext, tag []byte) error {
	if len(nonce) != NonceSize {
		return ErrInvalidNonceSize
	}
	if len(tag) != TagSize {
		return ErrInvalidTagSize
	}
	if len(dst) != len(ciphertext) {
		return ErrSizeMismatch
	}

	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	plaintext, err := gcm.Open(nil, nonce, slices.Concat(ciphertext, tag), nil)
	if err != nil {
		return ErrAuthentication
	}
	defer clear(plaintext)

	copy(dst, plaintext)

	return nil
}
