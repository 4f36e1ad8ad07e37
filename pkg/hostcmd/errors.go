package hostcmd

import (
	"errors"
)

var (
	ErrMessageTooLarge        = errors.New("hostcmd: message payload too large")
	ErrUnexpectedCommand      = errors.New("hostcmd: unexpected command")
	ErrInvalidResponseMessage = errors.New("hostcmd: invalid response message")
	ErrInvalidSequence        = errors.New("hostcmd: invalid packet sequence")
)

// StatusError is returned by the client for responses with a status other
// than EC_RES_SUCCESS, and may be returned by handlers to pick a status.
type StatusError struct {
	Command Command
	Status  Status
}

func NewStatusError(cmd Command, status Status) *StatusError {
	return &StatusError{
		Command: cmd,
		Status:  status,
	}
}

func (e *StatusError) Error() string {
	return e.Command.String() + " failed (" + e.Status.String() + ")"
}

func (e *StatusError) StatusCode() Status {
	return e.Status
}

// StatusCoder is implemented by errors that map onto a host status.
type StatusCoder interface {
	StatusCode() Status
}

// StatusOf returns the host status for err. Errors that carry no status
// map to EC_RES_ERROR.
func StatusOf(err error) Status {
	if err == nil {
		return EC_RES_SUCCESS
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}

	return EC_RES_ERROR
}

// IsStatus reports whether err carries the given status.
func IsStatus(err error, status Status) bool {
	return err != nil && StatusOf(err) == status
}
