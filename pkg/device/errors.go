package device

import (
	"errors"
)

var (
	ErrNotSupported      = errors.New("device: not supported")
	ErrTemplateTooBig    = errors.New("device: template does not fit the sensor buffer")
	ErrTemplateSize      = errors.New("device: template size mismatch")
	ErrStoreFull         = errors.New("device: template store full")
	ErrNoTemplate        = errors.New("device: no such template")
	ErrEnrollFailed      = errors.New("device: enrollment failed")
	ErrUnexpectedEvent   = errors.New("device: unexpected fingerprint event")
	ErrInvalidUserIDSize = errors.New("device: invalid user id size")
)

type ErrorWithMessage struct {
	Message string
	Err     error
}

func newErrorMessage(err error, msg string) *ErrorWithMessage {
	return &ErrorWithMessage{
		Message: msg,
		Err:     err,
	}
}

func (m *ErrorWithMessage) Error() string {
	if m.Message != "" {
		return m.Err.Error() + " (" + m.Message + ")"
	}
	return m.Err.Error()
}

func (m *ErrorWithMessage) Unwrap() error {
	return m.Err
}
