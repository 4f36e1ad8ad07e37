package crypto

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, r *rand.Rand, n int) []byte {
	t.Helper()

	b := make([]byte, n)
	_, err := r.Read(b)
	require.NoError(t, err)

	return b
}

func TestSealOpenTemplate(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for _, size := range []int{1, 16, 100, 4096} {
		key := randomBytes(t, r, KeySize)
		nonce := randomBytes(t, r, NonceSize)
		plaintext := randomBytes(t, r, size)

		ciphertext := make([]byte, size)
		tag := make([]byte, TagSize)
		require.NoError(t, SealTemplate(ciphertext, tag, key, nonce, plaintext))
		assert.NotEqual(t, plaintext, ciphertext)

		decrypted := make([]byte, size)
		require.NoError(t, OpenTemplate(decrypted, key, nonce, ciphertext, tag))
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestOpenTemplateTampered(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	key := randomBytes(t, r, KeySize)
	nonce := randomBytes(t, r, NonceSize)
	plaintext := randomBytes(t, r, 64)

	ciphertext := make([]byte, len(plaintext))
	tag := make([]byte, TagSize)
	require.NoError(t, SealTemplate(ciphertext, tag, key, nonce, plaintext))

	tamper := func(b []byte, i int) []byte {
		c := append([]byte(nil), b...)
		c[i] ^= 0x01
		return c
	}

	cases := map[string]func() error{
		"ciphertext": func() error {
			return OpenTemplate(fill(len(plaintext)), key, nonce, tamper(ciphertext, 10), tag)
		},
		"tag": func() error {
			return OpenTemplate(fill(len(plaintext)), key, nonce, ciphertext, tamper(tag, 0))
		},
		"nonce": func() error {
			return OpenTemplate(fill(len(plaintext)), key, tamper(nonce, 11), ciphertext, tag)
		},
		"key": func() error {
			return OpenTemplate(fill(len(plaintext)), tamper(key, 3), nonce, ciphertext, tag)
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, fn(), ErrAuthentication)
		})
	}

	dst := fill(len(plaintext))
	require.Error(t, OpenTemplate(dst, key, nonce, tamper(ciphertext, 0), tag))
	assert.Equal(t, make([]byte, len(plaintext)), dst)
}

func fill(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0x5a
	}
	return b
}

func TestNonceSizeEnforced(t *testing.T) {
	key := make([]byte, KeySize)
	tag := make([]byte, TagSize)
	buf := make([]byte, 8)

	assert.ErrorIs(t, SealTemplate(buf, tag, key, make([]byte, 16), buf), ErrInvalidNonceSize)
	assert.ErrorIs(t, SealTemplate(buf, tag, key, make([]byte, 8), buf), ErrInvalidNonceSize)

	dst := fill(8)
	assert.ErrorIs(t, OpenTemplate(dst, key, make([]byte, 11), buf, tag), ErrInvalidNonceSize)
	assert.Equal(t, make([]byte, 8), dst)
}

func TestInvalidKeySize(t *testing.T) {
	buf := make([]byte, 8)
	err := SealTemplate(buf, make([]byte, TagSize), make([]byte, 32), make([]byte, NonceSize), buf)
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}
