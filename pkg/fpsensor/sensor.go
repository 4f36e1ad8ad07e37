package fpsensor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ctap/fpmcu/pkg/crypto"
	"github.com/go-ctap/fpmcu/pkg/fptypes"
	"github.com/go-ctap/fpmcu/pkg/options"
	"github.com/google/uuid"
)

const (
	// DefaultEncryptionInterval is the minimum time between two template encryptions.
	DefaultEncryptionInterval = time.Second
	// DefaultFingerPollingDelay is the finger-up polling period.
	DefaultFingerPollingDelay = 100 * time.Millisecond

	// maxFingers is bounded by the width of the dirty bitmap.
	maxFingers = 32
)

var (
	ErrNoDriver        = errors.New("fpsensor: no driver")
	ErrNoSecret        = errors.New("fpsensor: no rollback secret source")
	ErrTooManyFingers  = errors.New("fpsensor: too many template slots")
	ErrInvalidGeometry = errors.New("fpsensor: invalid driver geometry")
)

// State is the coarse state of the sensor task.
type State int32

const (
	StateIdle State = iota
	StateWaitConfigUpdate
	StateDetectFinger
	StateCapturing
	StateEnrolling
	StateMatching
	StateLowPower
	StateReset
	StateStub
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateWaitConfigUpdate: "wait-config-update",
	StateDetectFinger:     "detect-finger",
	StateCapturing:        "capturing",
	StateEnrolling:        "enrolling",
	StateMatching:         "matching",
	StateLowPower:         "low-power",
	StateReset:            "reset",
	StateStub:             "stub",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type Config struct {
	Driver Driver
	// Secret is the device rollback secret mixed into every template key.
	Secret crypto.SecretSource
	// Transport is the raw sensor link used by FP_PASSTHRU, optional.
	Transport Transport
	// Locker reports the device lock state. A nil Locker means locked.
	Locker Locker

	EncryptionInterval time.Duration
	FingerPollingDelay time.Duration
}

// Sensor is the fingerprint subsystem: the template store, the encryption
// context and the sensor task.
type Sensor struct {
	logger *slog.Logger
	clock  func() time.Time
	rand   io.Reader

	driver    Driver
	geometry  Geometry
	transport Transport
	locker    Locker
	deriver   *crypto.KeyDeriver

	encryptionInterval time.Duration
	fingerPollingDelay time.Duration
	responseMax        int
	boot               time.Time

	mode    atomic.Uint32
	events  atomic.Uint32
	pending atomic.Uint32
	state   atomic.Int32
	wake    chan struct{}
	notify  chan struct{}

	// mu guards everything below. It is held by the sensor task for a whole
	// cycle and by the command handlers touching the buffers.
	mu                 sync.Mutex
	frame              []byte
	encrypted          []byte
	store              templateStore
	userID             [fptypes.ContextUserIDBytes]byte
	contextID          uuid.UUID
	encryptionDeadline time.Time
	enrollSession      fptypes.Mode
	stats              stats
}

func New(cfg Config, opts ...options.Option) (*Sensor, error) {
	oo := options.NewOptions(opts...)

	if cfg.Driver == nil {
		return nil, ErrNoDriver
	}
	if cfg.Secret == nil {
		return nil, ErrNoSecret
	}

	geometry := cfg.Driver.Geometry()
	if geometry.MaxFingers > maxFingers {
		return nil, ErrTooManyFingers
	}
	if geometry.MaxFingers < 0 || geometry.TemplateSize < 0 || geometry.FrameSize < 0 ||
		geometry.ImageOffset < 0 || geometry.ImageOffset > geometry.FrameSize {
		return nil, ErrInvalidGeometry
	}

	if cfg.EncryptionInterval == 0 {
		cfg.EncryptionInterval = DefaultEncryptionInterval
	}
	if cfg.FingerPollingDelay == 0 {
		cfg.FingerPollingDelay = DefaultFingerPollingDelay
	}

	s := &Sensor{
		logger:             oo.Logger,
		clock:              oo.Clock,
		rand:               oo.Rand,
		driver:             cfg.Driver,
		geometry:           geometry,
		transport:          cfg.Transport,
		locker:             cfg.Locker,
		deriver:            crypto.NewKeyDeriver(cfg.Secret),
		encryptionInterval: cfg.EncryptionInterval,
		fingerPollingDelay: cfg.FingerPollingDelay,
		responseMax:        oo.ResponseMax,
		wake:               make(chan struct{}, 1),
		notify:             make(chan struct{}, 1),
		frame:              make([]byte, geometry.FrameSize),
		encrypted:          make([]byte, fptypes.EncryptedTemplateSize(geometry.TemplateSize)),
		store:              newTemplateStore(geometry.MaxFingers, geometry.TemplateSize),
	}
	s.boot = s.clock()
	s.stats.reset()

	return s, nil
}

// State returns the state of the sensor task.
func (s *Sensor) State() State {
	return State(s.state.Load())
}

func (s *Sensor) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Sensor) locked() bool {
	return s.locker == nil || s.locker.IsLocked()
}

// Interrupt signals the sensor task that the armed sensor interrupt fired.
// It is safe to call from any goroutine.
func (s *Sensor) Interrupt() {
	s.setTaskEvent(taskEventSensorIRQ)
}

func (s *Sensor) setTaskEvent(evt uint32) {
	s.pending.Or(evt)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sensor) sendEvent(evt fptypes.Event) {
	s.events.Or(uint32(evt))
	s.logger.Debug("fingerprint event", "event", fmt.Sprintf("0x%08x", uint32(evt)))
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Notifications returns a channel that receives a value whenever events
// are pending for the host.
func (s *Sensor) Notifications() <-chan struct{} {
	return s.notify
}

// NextEvent returns and clears the accumulated event bits.
func (s *Sensor) NextEvent() fptypes.Event {
	return fptypes.Event(s.events.Swap(0))
}

// ContextID returns the correlation id of the current user context, or
// uuid.Nil when no context is set.
func (s *Sensor) ContextID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.contextID
}

// Templates returns the number of valid templates and the dirty bitmap.
func (s *Sensor) Templates() (valid int, dirty uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.valid, s.store.dirty
}

// clearContext wipes every buffer holding user data. Callers hold s.mu.
func (s *Sensor) clearContext() {
	clear(s.frame)
	clear(s.encrypted)
	clear(s.userID[:])
	s.store.reset()
	s.contextID = uuid.Nil
}

func formatMode(mode fptypes.Mode) string {
	return fmt.Sprintf("0x%08x", uint32(mode))
}
