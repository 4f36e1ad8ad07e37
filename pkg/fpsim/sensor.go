package fpsim

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/go-ctap/fpmcu/pkg/fpsensor"
	"github.com/go-ctap/fpmcu/pkg/fptypes"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

const (
	DefaultWidth        = 32
	DefaultHeight       = 32
	DefaultImageOffset  = 8
	DefaultTemplateSize = 64
	DefaultMaxFingers   = 5
	DefaultEnrollSteps  = 5

	// PixelFormatGrey is the V4L2 8-bit greyscale fourcc.
	PixelFormatGrey uint32 = 0x59455247

	vendorID  uint32 = 0x4d495346
	productID uint32 = 0x00000001

	templateHeaderSize = 4 + sha256.Size
)

var templateMagic = []byte{'F', 'T'}

var (
	ErrNotEnrolling     = errors.New("fpsim: no enrollment session")
	ErrEnrollIncomplete = errors.New("fpsim: enrollment incomplete")
	ErrTemplateTooSmall = errors.New("fpsim: template size too small")
)

// Op names a driver operation for fault injection.
type Op int

const (
	OpInit Op = iota
	OpAcquire
	OpEnrollBegin
	OpEnrollStep
	OpEnrollFinish
	OpMatch
)

type Config struct {
	Width        int `yaml:"width" validate:"gte=0"`
	Height       int `yaml:"height" validate:"gte=0"`
	ImageOffset  int `yaml:"image_offset" validate:"gte=0"`
	TemplateSize int `yaml:"template_size" validate:"gte=0"`
	MaxFingers   int `yaml:"max_fingers" validate:"gte=0,lte=32"`
	EnrollSteps  int `yaml:"enroll_steps" validate:"gte=0,lte=100"`
	// Adaptive makes every positive match update the matched template.
	Adaptive bool `yaml:"adaptive"`
}

func (c Config) withDefaults() Config {
	c.Width = lo.Ternary(c.Width == 0, DefaultWidth, c.Width)
	c.Height = lo.Ternary(c.Height == 0, DefaultHeight, c.Height)
	c.ImageOffset = lo.Ternary(c.ImageOffset == 0, DefaultImageOffset, c.ImageOffset)
	c.TemplateSize = lo.Ternary(c.TemplateSize == 0, DefaultTemplateSize, c.TemplateSize)
	c.MaxFingers = lo.Ternary(c.MaxFingers == 0, DefaultMaxFingers, c.MaxFingers)
	c.EnrollSteps = lo.Ternary(c.EnrollSteps == 0, DefaultEnrollSteps, c.EnrollSteps)
	return c
}

// Sensor is a software fingerprint sensor with a deterministic matcher.
// Each finger produces a distinct image derived from its id.
type Sensor struct {
	cfg    Config
	serial uuid.UUID

	mu         sync.Mutex
	irq        func()
	irqEnabled bool
	lowPower   bool
	finger     mo.Option[byte]
	faults     map[Op]error

	enrolling   bool
	enrollStep  int
	enrollImage []byte

	inits      int
	matchCalls int
}

var _ fpsensor.Driver = (*Sensor)(nil)

func New(cfg Config) (*Sensor, error) {
	cfg = cfg.withDefaults()
	if cfg.TemplateSize < templateHeaderSize {
		return nil, ErrTemplateTooSmall
	}

	return &Sensor{
		cfg:    cfg,
		serial: uuid.New(),
		faults: make(map[Op]error),
	}, nil
}

// Serial identifies this simulated sensor.
func (s *Sensor) Serial() uuid.UUID {
	return s.serial
}

// SetFault makes op fail with err until cleared with a nil err.
func (s *Sensor) SetFault(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Sensor) fault(op Op) error {
	return s.faults[op]
}

// PlaceFinger puts finger id on the sensor and fires the armed interrupt.
func (s *Sensor) PlaceFinger(id byte) {
	s.mu.Lock()
	s.finger = mo.Some(id)
	irq := s.armedIRQ()
	s.mu.Unlock()

	if irq != nil {
		irq()
	}
}

// LiftFinger removes the finger from the sensor.
func (s *Sensor) LiftFinger() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finger = mo.None[byte]()
}

func (s *Sensor) armedIRQ() func() {
	if s.irqEnabled && s.irq != nil && s.finger.IsPresent() {
		return s.irq
	}
	return nil
}

func (s *Sensor) InterruptEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.irqEnabled
}

func (s *Sensor) InLowPower() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lowPower
}

// Inits returns how many times the sensor was initialized.
func (s *Sensor) Inits() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inits
}

// MatchCalls returns how many times the matcher ran.
func (s *Sensor) MatchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.matchCalls
}

func (s *Sensor) Geometry() fpsensor.Geometry {
	return fpsensor.Geometry{
		Width:        uint16(s.cfg.Width),
		Height:       uint16(s.cfg.Height),
		BPP:          8,
		FrameSize:    s.cfg.ImageOffset + s.cfg.Width*s.cfg.Height,
		ImageOffset:  s.cfg.ImageOffset,
		TemplateSize: s.cfg.TemplateSize,
		MaxFingers:   s.cfg.MaxFingers,
	}
}

func (s *Sensor) Init(irq func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(OpInit); err != nil {
		return err
	}

	s.inits++
	s.irq = irq
	s.irqEnabled = false
	s.lowPower = false
	s.resetEnrollment()

	return nil
}

func (s *Sensor) Info() (fpsensor.SensorInfo, error) {
	return fpsensor.SensorInfo{
		VendorID:    vendorID,
		ProductID:   productID,
		ModelID:     binary.BigEndian.Uint32(s.serial[:4]),
		Version:     1,
		PixelFormat: PixelFormatGrey,
	}, nil
}

func (s *Sensor) AcquireImage(frame []byte, captureType fptypes.CaptureType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(OpAcquire); err != nil {
		return err
	}
	if len(frame) < s.Geometry().FrameSize {
		return fpsensor.ErrInvalidParam
	}

	s.lowPower = false
	header, image := frame[:s.cfg.ImageOffset], frame[s.cfg.ImageOffset:]
	for i := range header {
		header[i] = 0xa5
	}

	switch captureType {
	case fptypes.CapturePattern0, fptypes.CapturePattern1:
		for i := range s.cfg.Width * s.cfg.Height {
			x, y := i%s.cfg.Width, i/s.cfg.Width
			on := (x+y)%2 == 0
			if captureType == fptypes.CapturePattern1 {
				on = !on
			}
			image[i] = lo.Ternary[byte](on, 0xff, 0x00)
		}
		return nil
	case fptypes.CaptureResetTest:
		clear(image)
		return nil
	}

	id, ok := s.finger.Get()
	if !ok {
		return fpsensor.ErrNoFinger
	}
	fingerImage(image[:s.cfg.Width*s.cfg.Height], id)

	return nil
}

// fingerImage fills image with the deterministic picture of finger id.
func fingerImage(image []byte, id byte) {
	block := sha256.Sum256([]byte{id})
	for i := 0; i < len(image); i += len(block) {
		copy(image[i:], block[:])
		block = sha256.Sum256(block[:])
	}
}

func (s *Sensor) FingerStatus() fpsensor.FingerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finger.IsPresent() {
		return fpsensor.FingerPresent
	}
	return fpsensor.FingerNone
}

func (s *Sensor) ConfigureDetect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lowPower = false
}

func (s *Sensor) LowPower() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lowPower = true
}

func (s *Sensor) SetInterrupt(enabled bool) {
	s.mu.Lock()
	s.irqEnabled = enabled
	irq := s.armedIRQ()
	s.mu.Unlock()

	// The detect line is level triggered.
	if irq != nil {
		irq()
	}
}

func (s *Sensor) resetEnrollment() {
	s.enrolling = false
	s.enrollStep = 0
	s.enrollImage = nil
}

func (s *Sensor) EnrollBegin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(OpEnrollBegin); err != nil {
		return err
	}

	s.resetEnrollment()
	s.enrolling = true

	return nil
}

func (s *Sensor) EnrollStep(frame []byte) (fpsensor.EnrollResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(OpEnrollStep); err != nil {
		return fpsensor.EnrollResult{}, err
	}
	if !s.enrolling {
		return fpsensor.EnrollResult{}, ErrNotEnrolling
	}

	digest := s.digest(frame)
	switch {
	case s.enrollImage == nil:
		s.enrollImage = digest
	case !bytes.Equal(s.enrollImage, digest):
		return fpsensor.EnrollResult{
			Code:    fptypes.EnrollLowCoverage,
			Percent: s.percent(),
		}, nil
	}

	s.enrollStep++

	return fpsensor.EnrollResult{Code: fptypes.EnrollOK, Percent: s.percent()}, nil
}

func (s *Sensor) percent() int {
	return min(100, s.enrollStep*100/s.cfg.EnrollSteps)
}

func (s *Sensor) EnrollFinish(dst []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer s.resetEnrollment()

	if dst == nil {
		return nil
	}
	if err := s.fault(OpEnrollFinish); err != nil {
		return err
	}
	if !s.enrolling {
		return ErrNotEnrolling
	}
	if s.enrollStep < s.cfg.EnrollSteps {
		return ErrEnrollIncomplete
	}
	if len(dst) < templateHeaderSize {
		return ErrTemplateTooSmall
	}

	clear(dst)
	copy(dst, templateMagic)
	dst[2] = 1
	copy(dst[4:], s.enrollImage)

	return nil
}

func (s *Sensor) Match(templates [][]byte, frame []byte) (fpsensor.MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.matchCalls++
	if err := s.fault(OpMatch); err != nil {
		return fpsensor.MatchResult{}, err
	}

	digest := s.digest(frame)
	for i, tmpl := range templates {
		if len(tmpl) < templateHeaderSize || !bytes.Equal(tmpl[:2], templateMagic) {
			continue
		}
		if !bytes.Equal(tmpl[4:templateHeaderSize], digest) {
			continue
		}

		if s.cfg.Adaptive {
			tmpl[3]++
			return fpsensor.MatchResult{
				Code:    fptypes.MatchYesUpdated,
				Finger:  mo.Some(i),
				Updated: 1 << i,
			}, nil
		}

		return fpsensor.MatchResult{Code: fptypes.MatchYes, Finger: mo.Some(i)}, nil
	}

	return fpsensor.MatchResult{Code: fptypes.MatchNo, Finger: mo.None[int]()}, nil
}

func (s *Sensor) digest(frame []byte) []byte {
	sum := sha256.Sum256(frame[s.cfg.ImageOffset : s.cfg.ImageOffset+s.cfg.Width*s.cfg.Height])
	return sum[:]
}
