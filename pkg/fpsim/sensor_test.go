package fpsim

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-ctap/fpmcu/pkg/fpsensor"
	"github.com/go-ctap/fpmcu/pkg/fptypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSensor(t *testing.T, cfg Config) (*Sensor, []byte) {
	t.Helper()

	s, err := New(cfg)
	require.NoError(t, err)
	return s, make([]byte, s.Geometry().FrameSize)
}

func TestNewDefaults(t *testing.T) {
	s, _ := newSensor(t, Config{})

	g := s.Geometry()
	assert.Equal(t, uint16(DefaultWidth), g.Width)
	assert.Equal(t, uint16(DefaultHeight), g.Height)
	assert.Equal(t, DefaultImageOffset+DefaultWidth*DefaultHeight, g.FrameSize)
	assert.Equal(t, DefaultTemplateSize, g.TemplateSize)
	assert.Equal(t, DefaultMaxFingers, g.MaxFingers)

	_, err := New(Config{TemplateSize: 8})
	require.ErrorIs(t, err, ErrTemplateTooSmall)

	other, _ := newSensor(t, Config{})
	assert.NotEqual(t, s.Serial(), other.Serial())
}

func TestAcquirePatterns(t *testing.T) {
	s, frame := newSensor(t, Config{Width: 4, Height: 2, ImageOffset: 2})

	require.NoError(t, s.AcquireImage(frame, fptypes.CapturePattern0))
	assert.Equal(t, []byte{0xa5, 0xa5, 0xff, 0x00, 0xff, 0x00, 0x00, 0xff, 0x00, 0xff}, frame)

	require.NoError(t, s.AcquireImage(frame, fptypes.CapturePattern1))
	assert.Equal(t, []byte{0xa5, 0xa5, 0x00, 0xff, 0x00, 0xff, 0xff, 0x00, 0xff, 0x00}, frame)

	require.NoError(t, s.AcquireImage(frame, fptypes.CaptureResetTest))
	assert.Equal(t, make([]byte, 8), frame[2:])

	require.ErrorIs(t, s.AcquireImage(frame[:4], fptypes.CapturePattern0), fpsensor.ErrInvalidParam)
}

func TestAcquireFinger(t *testing.T) {
	s, frame := newSensor(t, Config{})

	require.ErrorIs(t, s.AcquireImage(frame, fptypes.CaptureSimpleImage), fpsensor.ErrNoFinger)
	assert.Equal(t, fpsensor.FingerNone, s.FingerStatus())

	s.PlaceFinger(1)
	assert.Equal(t, fpsensor.FingerPresent, s.FingerStatus())
	require.NoError(t, s.AcquireImage(frame, fptypes.CaptureSimpleImage))
	first := bytes.Clone(frame)

	require.NoError(t, s.AcquireImage(frame, fptypes.CaptureSimpleImage))
	assert.Equal(t, first, frame)

	s.PlaceFinger(2)
	require.NoError(t, s.AcquireImage(frame, fptypes.CaptureSimpleImage))
	assert.NotEqual(t, first, frame)

	s.LiftFinger()
	assert.Equal(t, fpsensor.FingerNone, s.FingerStatus())
}

func TestInterrupt(t *testing.T) {
	s, _ := newSensor(t, Config{})

	var fired atomic.Int32
	require.NoError(t, s.Init(func() { fired.Add(1) }))
	assert.Equal(t, 1, s.Inits())

	s.PlaceFinger(1)
	assert.Zero(t, fired.Load())

	s.SetInterrupt(true)
	assert.Equal(t, int32(1), fired.Load())
	assert.True(t, s.InterruptEnabled())

	s.LiftFinger()
	s.PlaceFinger(1)
	assert.Equal(t, int32(2), fired.Load())

	s.LowPower()
	assert.True(t, s.InLowPower())
	s.ConfigureDetect()
	assert.False(t, s.InLowPower())

	require.NoError(t, s.Init(nil))
	assert.False(t, s.InterruptEnabled())
}

func enroll(t *testing.T, s *Sensor, frame []byte, finger byte) []byte {
	t.Helper()

	s.PlaceFinger(finger)
	require.NoError(t, s.EnrollBegin())
	for i := 1; i <= DefaultEnrollSteps; i++ {
		require.NoError(t, s.AcquireImage(frame, fptypes.CaptureVendorFormat))
		res, err := s.EnrollStep(frame)
		require.NoError(t, err)
		assert.Equal(t, fpsensor.EnrollResult{Code: fptypes.EnrollOK, Percent: i * 100 / DefaultEnrollSteps}, res)
	}

	tmpl := make([]byte, DefaultTemplateSize)
	require.NoError(t, s.EnrollFinish(tmpl))
	return tmpl
}

func TestEnrollAndMatch(t *testing.T) {
	s, frame := newSensor(t, Config{})

	first := enroll(t, s, frame, 1)
	second := enroll(t, s, frame, 2)
	assert.Equal(t, templateMagic, first[:2])

	s.PlaceFinger(2)
	require.NoError(t, s.AcquireImage(frame, fptypes.CaptureVendorFormat))
	res, err := s.Match([][]byte{first, second}, frame)
	require.NoError(t, err)
	assert.Equal(t, fptypes.MatchYes, res.Code)
	assert.Equal(t, 1, res.Finger.MustGet())
	assert.Zero(t, res.Updated)

	s.PlaceFinger(3)
	require.NoError(t, s.AcquireImage(frame, fptypes.CaptureVendorFormat))
	res, err = s.Match([][]byte{first, second}, frame)
	require.NoError(t, err)
	assert.Equal(t, fptypes.MatchNo, res.Code)
	assert.False(t, res.Finger.IsPresent())
	assert.Equal(t, 2, s.MatchCalls())
}

func TestMatchAdaptive(t *testing.T) {
	s, frame := newSensor(t, Config{Adaptive: true})
	tmpl := enroll(t, s, frame, 1)

	res, err := s.Match([][]byte{make([]byte, DefaultTemplateSize), tmpl}, frame)
	require.NoError(t, err)
	assert.Equal(t, fptypes.MatchYesUpdated, res.Code)
	assert.Equal(t, uint32(1<<1), res.Updated)
	assert.Equal(t, byte(1), tmpl[3])
}

func TestEnrollErrors(t *testing.T) {
	s, frame := newSensor(t, Config{})

	_, err := s.EnrollStep(frame)
	require.ErrorIs(t, err, ErrNotEnrolling)

	s.PlaceFinger(1)
	require.NoError(t, s.EnrollBegin())
	require.NoError(t, s.AcquireImage(frame, fptypes.CaptureVendorFormat))
	_, err = s.EnrollStep(frame)
	require.NoError(t, err)

	require.ErrorIs(t, s.EnrollFinish(make([]byte, DefaultTemplateSize)), ErrEnrollIncomplete)

	require.NoError(t, s.EnrollBegin())
	require.NoError(t, s.AcquireImage(frame, fptypes.CaptureVendorFormat))
	_, err = s.EnrollStep(frame)
	require.NoError(t, err)

	s.PlaceFinger(2)
	require.NoError(t, s.AcquireImage(frame, fptypes.CaptureVendorFormat))
	res, err := s.EnrollStep(frame)
	require.NoError(t, err)
	assert.Equal(t, fptypes.EnrollLowCoverage, res.Code)
	assert.Equal(t, 20, res.Percent)

	require.NoError(t, s.EnrollFinish(nil))
	_, err = s.EnrollStep(frame)
	require.ErrorIs(t, err, ErrNotEnrolling)
}

func TestFaults(t *testing.T) {
	s, frame := newSensor(t, Config{})
	boom := errors.New("boom")

	for _, op := range []Op{OpInit, OpAcquire, OpEnrollBegin, OpEnrollStep, OpEnrollFinish, OpMatch} {
		s.SetFault(op, boom)
	}
	s.PlaceFinger(1)

	require.ErrorIs(t, s.Init(nil), boom)
	require.ErrorIs(t, s.AcquireImage(frame, fptypes.CaptureVendorFormat), boom)
	require.ErrorIs(t, s.EnrollBegin(), boom)
	_, err := s.EnrollStep(frame)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, s.EnrollFinish(make([]byte, DefaultTemplateSize)), boom)
	_, err = s.Match(nil, frame)
	require.ErrorIs(t, err, boom)

	s.SetFault(OpInit, nil)
	require.NoError(t, s.Init(nil))
}

func TestRollbackSecret(t *testing.T) {
	secret, err := NewRollbackSecret(bytes.NewReader(bytes.Repeat([]byte{0x11}, SecretSize)))
	require.NoError(t, err)
	assert.Equal(t, SecretSize, secret.SecretSize())

	dst := make([]byte, SecretSize)
	n, err := secret.ReadSecret(dst)
	require.NoError(t, err)
	assert.Equal(t, SecretSize, n)
	assert.Equal(t, bytes.Repeat([]byte{0x11}, SecretSize), dst)

	secret.SetUnavailable(true)
	_, err = secret.ReadSecret(dst)
	require.ErrorIs(t, err, ErrSecretUnavailable)

	_, err = NewRollbackSecret(bytes.NewReader(nil))
	require.Error(t, err)
}

func TestSPI(t *testing.T) {
	spi := NewSPI()

	rx := make([]byte, 3)
	require.NoError(t, spi.Transfer([]byte{1, 2, 3}, rx))
	assert.Equal(t, []byte{1, 2, 3}, rx)
	assert.True(t, spi.Selected())
	assert.Equal(t, 1, spi.Transfers())

	require.NoError(t, spi.Flush())
	assert.False(t, spi.Selected())

	spi.SetTimeout(true)
	require.ErrorIs(t, spi.Transfer([]byte{1}, rx), fpsensor.ErrTransportTimeout)
	assert.Equal(t, 1, spi.Transfers())
}

func TestLockAndClock(t *testing.T) {
	l := NewLock(true)
	assert.True(t, l.IsLocked())
	l.Set(false)
	assert.False(t, l.IsLocked())

	start := time.Unix(1000, 0)
	c := NewClock(start)
	c.Advance(time.Second)
	assert.Equal(t, start.Add(time.Second), c.Now())
}

func TestOperate(t *testing.T) {
	s, _ := newSensor(t, Config{})

	var mode atomic.Uint32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Operate(ctx, func() fptypes.Mode { return fptypes.Mode(mode.Load()) }, func() byte { return 4 }, time.Millisecond)
	}()

	mode.Store(uint32(fptypes.ModeMatch))
	require.Eventually(t, func() bool { return s.FingerStatus() == fpsensor.FingerPresent }, time.Second, time.Millisecond)

	mode.Store(0)
	require.Eventually(t, func() bool { return s.FingerStatus() == fpsensor.FingerNone }, time.Second, time.Millisecond)

	cancel()
	<-done
}
