package fpsim

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ctap/fpmcu/pkg/crypto"
	"github.com/go-ctap/fpmcu/pkg/fpsensor"
)

// SecretSize is the size of the simulated rollback secret.
const SecretSize = 32

var ErrSecretUnavailable = errors.New("fpsim: rollback secret unavailable")

// RollbackSecret is a device secret kept in memory.
type RollbackSecret struct {
	mu          sync.Mutex
	secret      []byte
	unavailable bool
}

var _ crypto.SecretSource = (*RollbackSecret)(nil)

// NewRollbackSecret draws a fresh secret from r.
func NewRollbackSecret(r io.Reader) (*RollbackSecret, error) {
	secret := make([]byte, SecretSize)
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, err
	}
	return &RollbackSecret{secret: secret}, nil
}

// NewRollbackSecretFrom uses a copy of secret.
func NewRollbackSecretFrom(secret []byte) *RollbackSecret {
	return &RollbackSecret{secret: append([]byte(nil), secret...)}
}

// SetUnavailable makes reads fail, like a device with a broken rollback region.
func (r *RollbackSecret) SetUnavailable(unavailable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unavailable = unavailable
}

func (r *RollbackSecret) ReadSecret(dst []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unavailable {
		return 0, ErrSecretUnavailable
	}
	return copy(dst, r.secret), nil
}

func (r *RollbackSecret) SecretSize() int {
	return len(r.secret)
}

// SPI is a loopback sensor link: every transfer reads back what was sent.
type SPI struct {
	mu        sync.Mutex
	selected  bool
	timeout   bool
	transfers int
}

var _ fpsensor.Transport = (*SPI)(nil)

func NewSPI() *SPI {
	return &SPI{}
}

// SetTimeout makes every transfer time out.
func (s *SPI) SetTimeout(timeout bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timeout = timeout
}

// Selected reports whether the sensor chip select is asserted.
func (s *SPI) Selected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selected
}

func (s *SPI) Transfers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transfers
}

func (s *SPI) Transfer(tx, rx []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timeout {
		s.selected = false
		return fpsensor.ErrTransportTimeout
	}

	s.transfers++
	s.selected = true
	copy(rx, tx)

	return nil
}

func (s *SPI) Wait() error {
	return nil
}

func (s *SPI) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = false
	return nil
}

// Lock is the device write-protect switch.
type Lock struct {
	locked atomic.Bool
}

var _ fpsensor.Locker = (*Lock)(nil)

func NewLock(locked bool) *Lock {
	l := &Lock{}
	l.locked.Store(locked)
	return l
}

func (l *Lock) Set(locked bool) {
	l.locked.Store(locked)
}

func (l *Lock) IsLocked() bool {
	return l.locked.Load()
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
