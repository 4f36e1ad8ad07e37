package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of template encryption keys (AES-128).
	KeySize = 16
	// SeedSize is the size of the seed received from the TPM.
	SeedSize = 32
	// UserIDSize is the size of the user identifier. It equals the SHA-256
	// output size, so a single expand step is enough.
	UserIDSize = sha256.Size
	// SaltSize is the size of the per-template salt.
	SaltSize = 16
)

var (
	ErrSeedNotSet        = errors.New("crypto: tpm seed has not been set")
	ErrSeedAlreadySet    = errors.New("crypto: tpm seed has already been set")
	ErrInvalidSeedSize   = errors.New("crypto: invalid tpm seed size")
	ErrInvalidUserIDSize = errors.New("crypto: invalid user id size")
	ErrInvalidSaltSize   = errors.New("crypto: invalid salt size")
	ErrSecretUnavailable = errors.New("crypto: cannot read rollback secret")
)

// SecretSource provides the device-local rollback secret.
type SecretSource interface {
	// ReadSecret fills dst with the secret and returns the number of bytes written.
	ReadSecret(dst []byte) (int, error)
	SecretSize() int
}

// KeyDeriver derives per-template keys from the rollback secret, the TPM
// seed and the active user id.
type KeyDeriver struct {
	secret SecretSource

	mu      sync.Mutex
	seed    [SeedSize]byte
	seedSet bool
}

func NewKeyDeriver(secret SecretSource) *KeyDeriver {
	return &KeyDeriver{secret: secret}
}

// SetSeed stores the TPM seed. The seed can only be written once for the
// lifetime of the deriver.
func (d *KeyDeriver) SetSeed(seed []byte) error {
	if len(seed) != SeedSize {
		return ErrInvalidSeedSize
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seedSet {
		return ErrSeedAlreadySet
	}
	copy(d.seed[:], seed)
	d.seedSet = true

	return nil
}

// SeedSet reports whether the TPM seed has been provisioned.
func (d *KeyDeriver) SeedSet() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.seedSet
}

// DeriveKey computes HKDF-SHA256 with IKM = rollback secret || seed, the
// given salt, and info = userID, truncated to KeySize.
func (d *KeyDeriver) DeriveKey(salt []byte, userID []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, ErrInvalidSaltSize
	}
	if len(userID) != UserIDSize {
		return nil, ErrInvalidUserIDSize
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.seedSet {
		return nil, ErrSeedNotSet
	}

	secretSize := d.secret.SecretSize()
	if secretSize < KeySize {
		return nil, ErrSecretUnavailable
	}

	ikm := make([]byte, secretSize+SeedSize)
	defer clear(ikm)

	n, err := d.secret.ReadSecret(ikm[:secretSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSecretUnavailable, err)
	}
	if n != secretSize {
		return nil, ErrSecretUnavailable
	}
	copy(ikm[secretSize:], d.seed[:])

	prk := hkdf.Extract(sha256.New, ikm, salt)
	defer clear(prk)

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, userID), key); err != nil {
		clear(key)
		return nil, fmt.Errorf("expanding template key using HKDF failed: %w", err)
	}

	return key, nil
}
