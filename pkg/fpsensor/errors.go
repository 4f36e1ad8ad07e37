package fpsensor

import (
	"errors"

	"github.com/go-ctap/fpmcu/pkg/hostcmd"
)

// Error is a sensor failure that maps onto a host command status.
type Error struct {
	status hostcmd.Status
	msg    string
}

func newError(status hostcmd.Status, msg string) *Error {
	return &Error{status: status, msg: msg}
}

func (e *Error) Error() string {
	return "fpsensor: " + e.msg
}

func (e *Error) StatusCode() hostcmd.Status {
	return e.status
}

var (
	ErrInvalidParam = newError(hostcmd.EC_RES_INVALID_PARAM, "invalid parameter")
	ErrAccessDenied = newError(hostcmd.EC_RES_ACCESS_DENIED, "access denied")
	ErrUnavailable  = newError(hostcmd.EC_RES_UNAVAILABLE, "unavailable")
	ErrBusy         = newError(hostcmd.EC_RES_BUSY, "busy")
	ErrOverflow     = newError(hostcmd.EC_RES_OVERFLOW, "template store full")
	ErrTimeout      = newError(hostcmd.EC_RES_TIMEOUT, "transport timeout")
	ErrInternal     = newError(hostcmd.EC_RES_ERROR, "internal error")

	ErrInvalidTemplateFormat = newError(hostcmd.EC_RES_INVALID_PARAM, "template format not supported")
	ErrKeyDerivation         = newError(hostcmd.EC_RES_UNAVAILABLE, "cannot derive encryption key")
	ErrEncryptFailed         = newError(hostcmd.EC_RES_UNAVAILABLE, "cannot encrypt template")
	ErrDecryptFailed         = newError(hostcmd.EC_RES_UNAVAILABLE, "cannot decrypt template")
)

var (
	// ErrDriverUnavailable is returned by drivers that have no sensor behind them.
	ErrDriverUnavailable = errors.New("fpsensor: sensor driver unavailable")
	// ErrTransportTimeout is returned by transports when a transfer times out.
	ErrTransportTimeout = errors.New("fpsensor: transport timeout")
	// ErrNoFinger is returned by drivers asked to capture without a finger.
	ErrNoFinger = errors.New("fpsensor: no finger on the sensor")
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
