package hostcmd

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-ctap/fpmcu/pkg/fptypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDenied = NewStatusError(EC_CMD_FP_SEED, EC_RES_ACCESS_DENIED)

func newTestServer() *Server {
	s := NewServer()
	s.Register(EC_CMD_FP_MODE, VersionMask(0), func(req *Request) (any, error) {
		var p fptypes.FPModeRequest
		if err := req.Decode(&p); err != nil {
			return nil, err
		}
		return &fptypes.FPModeResponse{Mode: p.Mode}, nil
	})
	s.Register(EC_CMD_FP_SEED, VersionMask(0), func(*Request) (any, error) {
		return nil, errDenied
	})
	s.Register(EC_CMD_FP_CONTEXT, VersionMask(0), func(*Request) (any, error) {
		return nil, errors.New("plain failure")
	})
	s.Register(EC_CMD_FP_INFO, VersionMask(0)|VersionMask(1), func(req *Request) (any, error) {
		return &fptypes.FPInfoResponse{Version: uint32(req.Version)}, nil
	})
	return s
}

func TestServerHandle(t *testing.T) {
	s := newTestServer()

	params, err := cbor.Marshal(&fptypes.FPModeRequest{Mode: fptypes.ModeMatch})
	require.NoError(t, err)

	status, data := s.Handle(EC_CMD_FP_MODE, 0, params)
	require.Equal(t, EC_RES_SUCCESS, status)
	var resp fptypes.FPModeResponse
	require.NoError(t, cbor.Unmarshal(data, &resp))
	assert.Equal(t, fptypes.ModeMatch, resp.Mode)

	status, _ = s.Handle(EC_CMD_FP_MODE, 1, params)
	assert.Equal(t, EC_RES_INVALID_VERSION, status)

	status, _ = s.Handle(EC_CMD_FP_MODE, 0, []byte{0xff, 0x00})
	assert.Equal(t, EC_RES_INVALID_PARAM, status)

	status, _ = s.Handle(EC_CMD_FP_SEED, 0, nil)
	assert.Equal(t, EC_RES_ACCESS_DENIED, status)

	status, _ = s.Handle(EC_CMD_FP_CONTEXT, 0, nil)
	assert.Equal(t, EC_RES_ERROR, status)

	status, _ = s.Handle(EC_CMD_FP_STATS, 0, nil)
	assert.Equal(t, EC_RES_INVALID_COMMAND, status)

	status, _ = s.Handle(EC_CMD_FP_INFO, 1, nil)
	assert.Equal(t, EC_RES_SUCCESS, status)
}

func TestServeOverPipe(t *testing.T) {
	s := newTestServer()
	srvConn, cliConn := net.Pipe()
	defer cliConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, srvConn)
	}()

	params, err := cbor.Marshal(&fptypes.FPModeRequest{Mode: fptypes.ModeFingerDown})
	require.NoError(t, err)

	resp, err := Call(cliConn, EC_CMD_FP_MODE, 0, params)
	require.NoError(t, err)
	var mode fptypes.FPModeResponse
	require.NoError(t, cbor.Unmarshal(resp.Data, &mode))
	assert.Equal(t, fptypes.ModeFingerDown, mode.Mode)

	_, err = Call(cliConn, EC_CMD_FP_SEED, 0, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, EC_RES_ACCESS_DENIED, se.Status)
	assert.True(t, IsStatus(err, EC_RES_ACCESS_DENIED))

	resp, err = Call(cliConn, EC_CMD_GET_PROTOCOL_INFO, 0, nil)
	require.NoError(t, err)
	var info fptypes.ProtocolInfoResponse
	require.NoError(t, cbor.Unmarshal(resp.Data, &info))
	assert.Equal(t, uint32(MaxPayload), info.MaxRequestPayload)
	assert.Equal(t, uint32(s.ResponseMax()), info.MaxResponsePayload)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "EC_RES_BUSY", EC_RES_BUSY.String())
	assert.Equal(t, "Status(99)", Status(99).String())
	assert.Equal(t, "EC_CMD_FP_FRAME", EC_CMD_FP_FRAME.String())
	assert.Equal(t, "EC_CMD_FP_SEED failed (EC_RES_ACCESS_DENIED)", errDenied.Error())
}
