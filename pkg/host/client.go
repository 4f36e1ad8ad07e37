package host

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-ctap/fpmcu/pkg/fptypes"
	"github.com/go-ctap/fpmcu/pkg/hostcmd"
	"github.com/go-ctap/fpmcu/pkg/options"
)

// Client issues fingerprint host commands over a packetized stream.
type Client struct {
	logger  *slog.Logger
	encMode cbor.EncMode
}

func NewClient(opts ...options.Option) *Client {
	oo := options.NewOptions(opts...)

	return &Client{
		logger:  oo.Logger,
		encMode: oo.EncMode,
	}
}

func (cl *Client) call(device io.ReadWriter, cmd hostcmd.Command, version uint8, req any, resp any) error {
	var b []byte
	if req != nil {
		var err error
		b, err = cl.encMode.Marshal(req)
		if err != nil {
			return fmt.Errorf("cannot marshal %s CBOR request: %w", cmd, err)
		}
	}
	cl.logger.Debug(cmd.String()+" CBOR request", "hex", hex.EncodeToString(b))

	respRaw, err := hostcmd.Call(device, cmd, version, b)
	if err != nil {
		return err
	}
	cl.logger.Debug(cmd.String()+" CBOR response", "hex", hex.EncodeToString(respRaw.Data))

	if resp == nil || len(respRaw.Data) == 0 {
		return nil
	}
	if err := cbor.Unmarshal(respRaw.Data, resp); err != nil {
		return fmt.Errorf("cannot unmarshal %s CBOR response: %w", cmd, err)
	}

	return nil
}

func (cl *Client) ProtocolInfo(device io.ReadWriter) (*fptypes.ProtocolInfoResponse, error) {
	var resp *fptypes.ProtocolInfoResponse
	if err := cl.call(device, hostcmd.EC_CMD_GET_PROTOCOL_INFO, 0, nil, &resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// Mode sets the sensor mode and returns the mode in effect. Pass
// fptypes.ModeDontChange to only read it.
func (cl *Client) Mode(device io.ReadWriter, mode fptypes.Mode) (fptypes.Mode, error) {
	req := &fptypes.FPModeRequest{
		Mode: mode,
	}

	var resp fptypes.FPModeResponse
	if err := cl.call(device, hostcmd.EC_CMD_FP_MODE, 0, req, &resp); err != nil {
		return 0, err
	}

	return resp.Mode, nil
}

func (cl *Client) Info(device io.ReadWriter, version uint8) (*fptypes.FPInfoResponse, error) {
	var resp *fptypes.FPInfoResponse
	if err := cl.call(device, hostcmd.EC_CMD_FP_INFO, version, nil, &resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// Frame reads size bytes of the raw frame or of an encrypted template.
// offset is built with fptypes.FrameOffset.
func (cl *Client) Frame(device io.ReadWriter, offset uint32, size uint32) ([]byte, error) {
	req := &fptypes.FPFrameRequest{
		Offset: offset,
		Size:   size,
	}

	var resp fptypes.FPFrameResponse
	if err := cl.call(device, hostcmd.EC_CMD_FP_FRAME, 0, req, &resp); err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// Template writes one chunk of an encrypted template. The last chunk has
// commit set.
func (cl *Client) Template(device io.ReadWriter, offset uint32, data []byte, commit bool) error {
	size := uint32(len(data))
	if commit {
		size |= fptypes.TemplateCommit
	}

	req := &fptypes.FPTemplateRequest{
		Offset: offset,
		Size:   size,
		Data:   data,
	}

	return cl.call(device, hostcmd.EC_CMD_FP_TEMPLATE, 0, req, nil)
}

func (cl *Client) Context(device io.ReadWriter, userID []byte) error {
	req := &fptypes.FPContextRequest{
		UserID: userID,
	}

	return cl.call(device, hostcmd.EC_CMD_FP_CONTEXT, 0, req, nil)
}

func (cl *Client) Seed(device io.ReadWriter, seed []byte) error {
	req := &fptypes.FPSeedRequest{
		StructVersion: fptypes.TemplateFormatVersion,
		Seed:          seed,
	}

	return cl.call(device, hostcmd.EC_CMD_FP_SEED, 0, req, nil)
}

func (cl *Client) Stats(device io.ReadWriter) (*fptypes.FPStatsResponse, error) {
	var resp *fptypes.FPStatsResponse
	if err := cl.call(device, hostcmd.EC_CMD_FP_STATS, 0, nil, &resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// Passthru sends tx to the sensor. With keepSelected the sensor stays
// selected for a follow-up transfer.
func (cl *Client) Passthru(device io.ReadWriter, tx []byte, keepSelected bool) ([]byte, error) {
	req := &fptypes.FPPassthruRequest{
		Len:  uint16(len(tx)),
		Data: tx,
	}
	if keepSelected {
		req.Flags |= fptypes.PassthruNotComplete
	}

	var resp fptypes.FPPassthruResponse
	if err := cl.call(device, hostcmd.EC_CMD_FP_PASSTHRU, 0, req, &resp); err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// NextEvent reads and clears the pending fingerprint events.
func (cl *Client) NextEvent(device io.ReadWriter) (fptypes.Event, error) {
	var resp fptypes.GetNextEventResponse
	if err := cl.call(device, hostcmd.EC_CMD_GET_NEXT_EVENT, 0, nil, &resp); err != nil {
		return 0, err
	}
	if resp.EventType != fptypes.MKBPEventFingerprint {
		return 0, fmt.Errorf("%w: event type %d", hostcmd.ErrInvalidResponseMessage, resp.EventType)
	}

	return fptypes.Event(resp.Data), nil
}
