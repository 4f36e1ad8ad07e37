package hostcmd

import (
	"io"
)

// Call sends a request and waits for its response. A response with a
// status other than EC_RES_SUCCESS is returned as a *StatusError.
func Call(dev io.ReadWriter, cmd Command, version uint8, data []byte) (*Response, error) {
	msg, err := NewMessage(cmd, version, data)
	if err != nil {
		return nil, err
	}

	if _, err := msg.WriteTo(dev); err != nil {
		return nil, err
	}

	respMsg := make(Message, 0)
	if _, err := respMsg.ReadFrom(dev); err != nil {
		return nil, err
	}

	if len(respMsg) < 1 {
		return nil, ErrInvalidResponseMessage
	}
	if respMsg.Command() != cmd {
		return nil, ErrUnexpectedCommand
	}

	resp := &Response{
		Command: cmd,
		Status:  Status(respMsg.Code()),
		Data:    respMsg.Payload(),
	}
	if resp.Status != EC_RES_SUCCESS {
		return resp, NewStatusError(cmd, resp.Status)
	}

	return resp, nil
}
