package fpsensor

import (
	"github.com/go-ctap/fpmcu/pkg/fptypes"
)

// validateMode checks a mode requested by the host against the current mode.
func validateMode(mode, current fptypes.Mode) error {
	algoMode := mode &^ fptypes.ModeCaptureTypeMask

	if mode.CaptureType() >= fptypes.CaptureTypeMax {
		return newErrorMessage(ErrInvalidParam, "unknown capture type")
	}

	if algoMode&^fptypes.ModeValid != 0 {
		return newErrorMessage(ErrInvalidParam, "unknown mode bits")
	}

	// A sensor reset must be requested alone and only while no other
	// mode, including a pending reset, is active.
	if mode&fptypes.ModeResetSensor != 0 {
		if algoMode&fptypes.ModeValid&^fptypes.ModeResetSensor != 0 {
			return newErrorMessage(ErrInvalidParam, "sensor reset combined with other modes")
		}
		if current&fptypes.ModeValid != 0 {
			return newErrorMessage(ErrInvalidParam, "sensor reset while another mode is active")
		}
	}

	return nil
}

// Mode returns the current mode word.
func (s *Sensor) Mode() fptypes.Mode {
	return fptypes.Mode(s.mode.Load())
}

func (s *Sensor) clearMode(bits fptypes.Mode) {
	s.mode.And(^uint32(bits))
}

// SetMode validates and applies a new mode, then wakes the sensor task.
// ModeDontChange only queries the current mode.
func (s *Sensor) SetMode(mode fptypes.Mode) (fptypes.Mode, error) {
	current, err := s.storeMode(mode)
	if err != nil {
		s.logger.Warn("invalid fingerprint mode", "mode", formatMode(mode), "err", err)
	}

	return current, err
}

// storeMode validates mode against the current mode word and swaps it in
// only if the word did not change in between. It returns the mode in
// effect afterwards.
func (s *Sensor) storeMode(mode fptypes.Mode) (fptypes.Mode, error) {
	for {
		old := s.mode.Load()
		if err := validateMode(mode, fptypes.Mode(old)); err != nil {
			return fptypes.Mode(old), err
		}
		if mode&fptypes.ModeDontChange != 0 {
			return fptypes.Mode(old), nil
		}

		if s.mode.CompareAndSwap(old, uint32(mode)) {
			s.setTaskEvent(taskEventUpdateConfig)
			return mode, nil
		}
	}
}
