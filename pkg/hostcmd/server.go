package hostcmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-ctap/fpmcu/pkg/fptypes"
	"github.com/go-ctap/fpmcu/pkg/options"
)

// Request is a decoded host command handed to a handler.
type Request struct {
	Command Command
	Version uint8
	Params  []byte
	// ResponseMax is the largest data payload the handler may return.
	ResponseMax int
}

// Decode unmarshals the CBOR parameters into v.
func (r *Request) Decode(v any) error {
	if err := cbor.Unmarshal(r.Params, v); err != nil {
		return &paramError{err: err}
	}
	return nil
}

type paramError struct {
	err error
}

func (e *paramError) Error() string {
	return "hostcmd: cannot decode parameters: " + e.err.Error()
}

func (e *paramError) Unwrap() error {
	return e.err
}

func (e *paramError) StatusCode() Status {
	return EC_RES_INVALID_PARAM
}

// HandlerFunc handles one host command. The returned value, if not nil, is
// CBOR-encoded into the response.
type HandlerFunc func(req *Request) (any, error)

type handler struct {
	fn       HandlerFunc
	versions uint32
}

// Server dispatches host commands to registered handlers.
type Server struct {
	logger      *slog.Logger
	encMode     cbor.EncMode
	responseMax int

	mu       sync.RWMutex
	handlers map[Command]handler
}

func NewServer(opts ...options.Option) *Server {
	oo := options.NewOptions(opts...)

	s := &Server{
		logger:      oo.Logger,
		encMode:     oo.EncMode,
		responseMax: oo.ResponseMax,
		handlers:    make(map[Command]handler),
	}
	s.Register(EC_CMD_GET_PROTOCOL_INFO, VersionMask(0), s.protocolInfo)

	return s
}

// Register installs fn for cmd. versions is a mask built with VersionMask.
func (s *Server) Register(cmd Command, versions uint32, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[cmd] = handler{fn: fn, versions: versions}
}

// ResponseMax returns the response payload limit handed to handlers.
func (s *Server) ResponseMax() int {
	return s.responseMax
}

// Handle runs a single command and returns the status and encoded response.
func (s *Server) Handle(cmd Command, version uint8, params []byte) (Status, []byte) {
	s.mu.RLock()
	h, ok := s.handlers[cmd]
	s.mu.RUnlock()

	if !ok {
		s.logger.Debug("unknown host command", "command", cmd)
		return EC_RES_INVALID_COMMAND, nil
	}
	if version >= 32 || h.versions&VersionMask(version) == 0 {
		return EC_RES_INVALID_VERSION, nil
	}

	req := &Request{
		Command:     cmd,
		Version:     version,
		Params:      params,
		ResponseMax: s.responseMax,
	}

	resp, err := h.fn(req)
	if err != nil {
		status := StatusOf(err)
		s.logger.Debug("host command failed", "command", cmd, "status", status, "err", err)
		return status, nil
	}
	if resp == nil {
		return EC_RES_SUCCESS, nil
	}

	b, err := s.encMode.Marshal(resp)
	if err != nil {
		s.logger.Error("cannot marshal host command response", "command", cmd, "err", err)
		return EC_RES_INVALID_RESPONSE, nil
	}
	if len(b) > MaxPayload {
		return EC_RES_RESPONSE_TOO_BIG, nil
	}

	return EC_RES_SUCCESS, b
}

// Serve reads requests from rw and writes responses until ctx is canceled
// or the stream fails. io.EOF ends the loop without error.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	if c, ok := rw.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() {
			_ = c.Close()
		})
		defer stop()
	}

	for {
		req := make(Message, 0)
		if _, err := req.ReadFrom(rw); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("cannot read host command: %w", err)
		}

		params := req.Payload()
		s.logger.Debug("host command request", "command", req.Command(), "version", req.Code(), "hex", hex.EncodeToString(params))

		status, data := s.Handle(req.Command(), req.Code(), params)

		resp, err := NewMessage(req.Command(), byte(status), data)
		if err != nil {
			resp, _ = NewMessage(req.Command(), byte(EC_RES_RESPONSE_TOO_BIG), nil)
		}
		if _, err := resp.WriteTo(rw); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("cannot write host command response: %w", err)
		}
	}
}

func (s *Server) protocolInfo(_ *Request) (any, error) {
	return &fptypes.ProtocolInfoResponse{
		ProtocolVersions:   1 << ProtocolVersion,
		MaxRequestPacket:   PacketSize,
		MaxResponsePacket:  PacketSize,
		MaxRequestPayload:  MaxPayload,
		MaxResponsePayload: uint32(s.responseMax),
	}, nil
}
