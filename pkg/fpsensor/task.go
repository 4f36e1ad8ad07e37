package fpsensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-ctap/fpmcu/pkg/fptypes"
)

// Sensor task events.
const (
	taskEventSensorIRQ    uint32 = 1 << 0
	taskEventUpdateConfig uint32 = 1 << 1
	taskEventTimer        uint32 = 1 << 31
)

// noTimeout makes the task wait for events forever.
const noTimeout time.Duration = -1

// Run initializes the sensor and runs the sensor task until ctx is done.
// Without a sensor driver the task degrades to echoing its events to the host.
func (s *Sensor) Run(ctx context.Context) error {
	s.mu.Lock()
	err := s.driver.Init(s.Interrupt)
	s.mu.Unlock()

	if errors.Is(err, ErrDriverUnavailable) {
		s.logger.Warn("fingerprint sensor unavailable, running stub task")
		return s.runStub(ctx)
	}
	if err != nil {
		return fmt.Errorf("cannot initialize sensor: %w", err)
	}

	s.mu.Lock()
	s.driver.LowPower()
	s.mu.Unlock()
	s.setState(StateLowPower)

	timeout := noTimeout
	for {
		evt, err := s.waitEvent(ctx, timeout)
		if err != nil {
			return err
		}
		timeout = s.step(evt, timeout)
	}
}

func (s *Sensor) runStub(ctx context.Context) error {
	s.setState(StateStub)
	for {
		evt, err := s.waitEvent(ctx, noTimeout)
		if err != nil {
			return err
		}
		s.sendEvent(fptypes.Event(evt))
	}
}

func (s *Sensor) waitEvent(ctx context.Context, timeout time.Duration) (uint32, error) {
	var timer <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		if evt := s.pending.Swap(0); evt != 0 {
			return evt, nil
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-s.wake:
		case <-timer:
			return taskEventTimer, nil
		}
	}
}

// step runs one task cycle for evt and returns the next wait timeout.
func (s *Sensor) step(evt uint32, timeout time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if evt&taskEventUpdateConfig != 0 {
		return s.updateConfig(timeout)
	}
	if evt&(taskEventSensorIRQ|taskEventTimer) != 0 {
		return s.handleSensorEvent(timeout)
	}

	return timeout
}

func (s *Sensor) updateConfig(timeout time.Duration) time.Duration {
	mode := s.Mode()
	s.logger.Debug("fingerprint config update", "mode", formatMode(mode))

	s.setState(StateWaitConfigUpdate)
	s.driver.SetInterrupt(false)

	if (mode^s.enrollSession)&fptypes.ModeEnrollSession != 0 {
		if mode&fptypes.ModeEnrollSession != 0 {
			if err := s.driver.EnrollBegin(); err != nil {
				s.logger.Error("cannot start enrollment session", "err", err)
				s.clearMode(fptypes.ModeEnrollSession)
			}
		} else {
			_ = s.driver.EnrollFinish(nil)
		}
		s.enrollSession = s.Mode() & fptypes.ModeEnrollSession
	}

	if mode.IsTestCapture() {
		if err := s.driver.AcquireImage(s.frame, mode.CaptureType()); err != nil {
			s.logger.Error("cannot acquire test image", "err", err)
		}
		s.clearMode(fptypes.ModeCapture)
		s.sendEvent(fptypes.EventImageReady)
		return timeout
	}

	current := s.Mode()
	if current&fptypes.ModeAnyDetectFinger != 0 {
		s.driver.ConfigureDetect()
		s.setState(StateDetectFinger)
	}
	if current&fptypes.ModeDeepSleep != 0 {
		s.driver.LowPower()
	}
	if current&fptypes.ModeFingerUp != 0 {
		timeout = s.fingerPollingDelay
	} else {
		timeout = noTimeout
	}

	switch {
	case mode&fptypes.ModeAnyWaitIRQ != 0:
		s.driver.SetInterrupt(true)
		s.setState(StateDetectFinger)
	case mode&fptypes.ModeResetSensor != 0:
		s.setState(StateReset)
		s.clearContext()
		if err := s.driver.Init(s.Interrupt); err != nil {
			s.logger.Error("cannot reset sensor", "err", err)
		}
		s.clearMode(fptypes.ModeResetSensor)
		s.setState(StateIdle)
	default:
		s.driver.LowPower()
		s.setState(StateLowPower)
	}

	return timeout
}

func (s *Sensor) handleSensorEvent(timeout time.Duration) time.Duration {
	s.stats.overallT0 = s.clock()
	s.stats.timestampsInvalid = 0
	s.driver.SetInterrupt(false)

	status := FingerNone
	mode := s.Mode()
	if mode&fptypes.ModeAnyDetectFinger != 0 {
		s.setState(StateDetectFinger)
		status = s.driver.FingerStatus()

		if status == FingerPresent && mode&fptypes.ModeFingerDown != 0 {
			s.clearMode(fptypes.ModeFingerDown)
			s.sendEvent(fptypes.EventFingerDown)
		} else if status == FingerNone && mode&fptypes.ModeFingerUp != 0 {
			s.clearMode(fptypes.ModeFingerUp)
			timeout = noTimeout
			s.sendEvent(fptypes.EventFingerUp)
		}
	}

	if status == FingerPresent && s.Mode()&fptypes.ModeAnyCapture != 0 {
		s.processFinger()
	}

	if s.Mode()&fptypes.ModeAnyWaitIRQ != 0 {
		s.driver.ConfigureDetect()
		s.driver.SetInterrupt(true)
		s.setState(StateDetectFinger)
	} else {
		s.driver.LowPower()
		s.setState(StateLowPower)
	}

	return timeout
}

func (s *Sensor) processFinger() {
	mode := s.Mode()

	s.setState(StateCapturing)
	t0 := s.clock()
	err := s.driver.AcquireImage(s.frame, mode.CaptureType())
	s.stats.captureTime = s.clock().Sub(t0)
	if err != nil {
		s.logger.Error("cannot acquire image", "err", err)
		s.stats.timestampsInvalid |= fptypes.StatsCaptureInvalid
		return
	}

	if s.transport != nil {
		if err := s.transport.Flush(); err != nil {
			s.logger.Warn("cannot release sensor transport", "err", err)
		}
	}

	evt := fptypes.EventImageReady
	switch {
	case mode&fptypes.ModeEnrollImage != 0:
		s.setState(StateEnrolling)
		evt = s.processEnroll()
	case mode&fptypes.ModeMatch != 0:
		s.setState(StateMatching)
		evt = s.processMatch()
	}

	s.clearMode(fptypes.ModeAnyCapture)
	s.stats.overallTime = s.clock().Sub(s.stats.overallT0)
	s.sendEvent(evt)
}

// processEnroll feeds the capture to the enrollment session. A failed step
// leaves the session open so the host can retry with another capture.
func (s *Sensor) processEnroll() fptypes.Event {
	if s.store.full() {
		s.logger.Error("cannot enroll, template store is full")
		return fptypes.EnrollEvent(fptypes.EnrollInternal, 0)
	}

	idx := s.store.next()
	res, err := s.driver.EnrollStep(s.frame)
	if err != nil {
		s.logger.Error("enrollment step failed", "err", err)
		return fptypes.EnrollEvent(fptypes.EnrollInternal, 0)
	}
	s.store.markDirty(1 << idx)

	code := res.Code
	if res.Percent >= 100 {
		if err := s.driver.EnrollFinish(s.store.slot(idx)); err != nil {
			s.logger.Error("cannot extract template", "err", err)
			s.store.clearSlot(idx)
			s.store.clearDirty(idx)
			code = fptypes.EnrollInternal
		} else {
			s.store.commit()
			code = fptypes.EnrollOK
		}
		s.clearMode(fptypes.ModeEnrollSession)
		s.enrollSession = 0
	}

	s.logger.Debug("enrollment step", "finger", idx, "code", code, "percent", res.Percent)

	return fptypes.EnrollEvent(code, res.Percent)
}

func (s *Sensor) processMatch() fptypes.Event {
	t0 := s.clock()
	finger := -1
	var code int

	if s.store.valid == 0 {
		code = fptypes.MatchNoTemplates
		s.stats.timestampsInvalid |= fptypes.StatsMatchingInvalid
	} else {
		res, err := s.driver.Match(s.store.validSlots(), s.frame)
		if err != nil {
			s.logger.Error("match failed", "err", err)
			code = fptypes.MatchNoInternal
			s.stats.timestampsInvalid |= fptypes.StatsMatchingInvalid
		} else {
			code = res.Code
			finger = res.Finger.OrElse(-1)
			if code == fptypes.MatchYesUpdated {
				s.store.markDirty(res.Updated & s.store.validMask())
			}
		}
	}

	s.stats.matchingTime = s.clock().Sub(t0)
	s.stats.templateMatched = int8(finger)
	s.logger.Debug("match result", "code", code, "finger", finger)

	return fptypes.MatchEvent(code, finger)
}
