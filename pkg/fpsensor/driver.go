package fpsensor

import (
	"github.com/go-ctap/fpmcu/pkg/fptypes"
	"github.com/samber/mo"
)

// FingerState is the finger presence reported by the sensor.
type FingerState int

const (
	FingerNone FingerState = iota
	FingerPartial
	FingerPresent
)

// Geometry describes the buffers required by a driver and its matching
// algorithm.
type Geometry struct {
	Width  uint16
	Height uint16
	BPP    uint16
	// FrameSize is the size of the capture buffer.
	FrameSize int
	// ImageOffset is the offset of the processed image inside the frame.
	ImageOffset int
	// TemplateSize is the size of one plaintext template.
	TemplateSize int
	// MaxFingers is the number of template slots.
	MaxFingers int
}

// SensorInfo identifies the sensor.
type SensorInfo struct {
	VendorID    uint32
	ProductID   uint32
	ModelID     uint32
	Version     uint32
	PixelFormat uint32
	Errors      uint16
}

// EnrollResult is the outcome of one enrollment step.
type EnrollResult struct {
	// Code is one of the fptypes.Enroll* codes.
	Code int
	// Percent is the enrollment completion, 100 when the template can be extracted.
	Percent int
}

// MatchResult is the outcome of matching a capture against the templates.
type MatchResult struct {
	// Code is one of the fptypes.Match* codes.
	Code int
	// Finger is the index of the matched template, if any.
	Finger mo.Option[int]
	// Updated is the bitmap of templates the matcher modified.
	Updated uint32
}

// Driver is the sensor and its matching library.
type Driver interface {
	Geometry() Geometry
	// Init resets the sensor. irq is called whenever the armed sensor
	// interrupt fires. Drivers without hardware return ErrDriverUnavailable.
	Init(irq func()) error
	Info() (SensorInfo, error)
	AcquireImage(frame []byte, captureType fptypes.CaptureType) error
	FingerStatus() FingerState
	ConfigureDetect()
	LowPower()
	// SetInterrupt arms or disarms the finger detection interrupt.
	SetInterrupt(enabled bool)

	EnrollBegin() error
	EnrollStep(frame []byte) (EnrollResult, error)
	// EnrollFinish extracts the template into dst. A nil dst aborts the session.
	EnrollFinish(dst []byte) error
	// Match compares the frame with the templates. Templates may be updated in place.
	Match(templates [][]byte, frame []byte) (MatchResult, error)
}

// Transport is the raw link to the sensor used by FP_PASSTHRU.
type Transport interface {
	// Transfer starts a full-duplex transfer, rx receives len(tx) bytes.
	Transfer(tx, rx []byte) error
	// Wait waits for the transfer keeping the sensor selected.
	Wait() error
	// Flush waits for the transfer and releases the sensor.
	Flush() error
}

// Locker reports whether the device is locked. Raw frames and passthrough
// are only available on unlocked devices.
type Locker interface {
	IsLocked() bool
}

// UnavailableDriver is the driver used when no sensor library is present.
// The sensor task then only echoes its events to the host.
type UnavailableDriver struct{}

var _ Driver = UnavailableDriver{}

func (UnavailableDriver) Geometry() Geometry        { return Geometry{} }
func (UnavailableDriver) Init(func()) error         { return ErrDriverUnavailable }
func (UnavailableDriver) Info() (SensorInfo, error) { return SensorInfo{}, ErrDriverUnavailable }
func (UnavailableDriver) FingerStatus() FingerState { return FingerNone }
func (UnavailableDriver) ConfigureDetect()          {}
func (UnavailableDriver) LowPower()                 {}
func (UnavailableDriver) SetInterrupt(bool)         {}
func (UnavailableDriver) EnrollBegin() error        { return ErrDriverUnavailable }
func (UnavailableDriver) EnrollFinish([]byte) error { return ErrDriverUnavailable }
func (UnavailableDriver) AcquireImage([]byte, fptypes.CaptureType) error {
	return ErrDriverUnavailable
}
func (UnavailableDriver) EnrollStep([]byte) (EnrollResult, error) {
	return EnrollResult{}, ErrDriverUnavailable
}
func (UnavailableDriver) Match([][]byte, []byte) (MatchResult, error) {
	return MatchResult{}, ErrDriverUnavailable
}
