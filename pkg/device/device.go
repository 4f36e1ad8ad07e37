package device

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net"
	"time"

	"github.com/go-ctap/fpmcu/pkg/fptypes"
	"github.com/go-ctap/fpmcu/pkg/host"
	"github.com/go-ctap/fpmcu/pkg/hostcmd"
	"github.com/go-ctap/fpmcu/pkg/options"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// DefaultPollInterval is the event polling period.
const DefaultPollInterval = 20 * time.Millisecond

// requestOverhead is reserved in each request for the CBOR envelope.
const requestOverhead = 16

// Device is a fingerprint MCU reachable through a host command stream.
type Device struct {
	Address string

	conn     io.ReadWriteCloser
	client   *host.Client
	logger   *slog.Logger
	protocol *fptypes.ProtocolInfoResponse
	info     *fptypes.FPInfoResponse

	responseMax  int
	PollInterval time.Duration
}

// Dial connects to a fingerprint MCU listening on network/address.
func Dial(ctx context.Context, network, address string, opts ...options.Option) (*Device, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}

	d, err := New(conn, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	d.Address = address

	return d, nil
}

// New creates a Device on an established stream and reads the protocol
// and sensor information.
func New(conn io.ReadWriteCloser, opts ...options.Option) (*Device, error) {
	oo := options.NewOptions(opts...)

	d := &Device{
		conn:         conn,
		client:       host.NewClient(opts...),
		logger:       oo.Logger,
		responseMax:  oo.ResponseMax,
		PollInterval: DefaultPollInterval,
	}

	protocol, err := d.client.ProtocolInfo(d.conn)
	if err != nil {
		return nil, err
	}
	d.protocol = protocol

	if err := d.RefreshInfo(); err != nil {
		if hostcmd.IsStatus(err, hostcmd.EC_RES_UNAVAILABLE) {
			return nil, newErrorMessage(ErrNotSupported, "sensor unavailable")
		}
		return nil, err
	}

	return d, nil
}

// Close closes the underlying stream.
func (d *Device) Close() error {
	return d.conn.Close()
}

func (d *Device) ProtocolInfo() *fptypes.ProtocolInfoResponse {
	return d.protocol
}

// Info returns the sensor information read by the last RefreshInfo.
func (d *Device) Info() *fptypes.FPInfoResponse {
	return d.info
}

func (d *Device) RefreshInfo() error {
	info, err := d.client.Info(d.conn, 1)
	if err != nil {
		return err
	}
	d.info = info

	return nil
}

func (d *Device) SetMode(mode fptypes.Mode) (fptypes.Mode, error) {
	return d.client.Mode(d.conn, mode)
}

func (d *Device) Mode() (fptypes.Mode, error) {
	return d.client.Mode(d.conn, fptypes.ModeDontChange)
}

// SetSeed sends the TPM seed. The sensor only accepts it once per boot.
func (d *Device) SetSeed(seed []byte) error {
	return d.client.Seed(d.conn, seed)
}

// SetContext starts a new user context, dropping every template on the sensor.
func (d *Device) SetContext(userID []byte) error {
	if len(userID) != fptypes.ContextUserIDBytes {
		return ErrInvalidUserIDSize
	}

	if err := d.client.Context(d.conn, userID); err != nil {
		return err
	}

	return d.RefreshInfo()
}

func (d *Device) Stats() (*fptypes.FPStatsResponse, error) {
	return d.client.Stats(d.conn)
}

// Passthru exchanges raw bytes with the sensor.
func (d *Device) Passthru(tx []byte, keepSelected bool) ([]byte, error) {
	return d.client.Passthru(d.conn, tx, keepSelected)
}

// WaitEvent polls for fingerprint events until one of the mask bits is set.
func (d *Device) WaitEvent(ctx context.Context, mask fptypes.Event) (fptypes.Event, error) {
	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	for {
		evt, err := d.client.NextEvent(d.conn)
		switch {
		case hostcmd.IsStatus(err, hostcmd.EC_RES_UNAVAILABLE):
		case err != nil:
			return 0, err
		case evt&mask != 0:
			return evt, nil
		default:
			d.logger.Debug("ignoring fingerprint event", "event", fmt.Sprintf("0x%08x", uint32(evt)))
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Device) readFrame(ctx context.Context, idx uint32, size int) ([]byte, error) {
	data := make([]byte, 0, size)
	for offset := 0; offset < size; {
		n := min(d.responseMax, size-offset)

		chunk, err := d.client.Frame(d.conn, fptypes.FrameOffset(idx, uint32(offset)), uint32(n))
		if hostcmd.IsStatus(err, hostcmd.EC_RES_BUSY) {
			// Templates are encrypted at most once per interval.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.PollInterval):
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		data = append(data, chunk...)
		offset += len(chunk)
	}

	return data, nil
}

// DownloadTemplate reads the encrypted template of finger.
func (d *Device) DownloadTemplate(ctx context.Context, finger int) ([]byte, error) {
	if finger < 0 || finger >= int(d.info.TemplateMax) {
		return nil, newErrorMessage(ErrNoTemplate, fmt.Sprintf("no template slot %d", finger))
	}

	data, err := d.readFrame(ctx, fptypes.FrameIndexTemplate+uint32(finger), int(d.info.TemplateSize))
	if err != nil {
		return nil, err
	}

	var meta fptypes.EncryptionMetadata
	if err := meta.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	if meta.StructVersion != fptypes.TemplateFormatVersion {
		return nil, newErrorMessage(ErrNotSupported, fmt.Sprintf("template format version %d", meta.StructVersion))
	}

	return data, nil
}

// DirtyTemplates downloads every template changed since it was last read.
func (d *Device) DirtyTemplates(ctx context.Context) iter.Seq2[*Template, error] {
	return func(yield func(*Template, error) bool) {
		if err := d.RefreshInfo(); err != nil {
			yield(nil, err)
			return
		}

		dirty := d.info.TemplateDirty
		for finger := range int(d.info.TemplateValid) {
			if dirty&(1<<finger) == 0 {
				continue
			}

			data, err := d.DownloadTemplate(ctx, finger)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(&Template{Finger: finger, Data: data}, nil) {
				return
			}
		}
	}
}

// UploadTemplate installs an encrypted template into the next free slot.
func (d *Device) UploadTemplate(template []byte) error {
	if len(template) != int(d.info.TemplateSize) {
		return newErrorMessage(
			ErrTemplateSize,
			fmt.Sprintf("sensor templates are %db while this one is %db", d.info.TemplateSize, len(template)),
		)
	}
	if len(template) == 0 {
		return newErrorMessage(ErrNotSupported, "sensor has no template storage")
	}

	maxFragmentLength := min(d.responseMax, int(d.protocol.MaxRequestPayload)-requestOverhead)
	if maxFragmentLength <= 0 {
		return ErrTemplateTooBig
	}

	offset := uint32(0)
	chunks := lo.Chunk(template, maxFragmentLength)
	for i, chunk := range chunks {
		err := d.client.Template(d.conn, offset, chunk, i == len(chunks)-1)
		if hostcmd.IsStatus(err, hostcmd.EC_RES_OVERFLOW) {
			return newErrorMessage(ErrStoreFull, err.Error())
		}
		if err != nil {
			return err
		}

		offset += uint32(len(chunk))
	}

	return d.RefreshInfo()
}

// Enroll runs an enrollment session, yielding the progress after every
// capture. The finger must be lifted between captures. Stopping the
// iteration early cancels the session.
func (d *Device) Enroll(ctx context.Context) iter.Seq2[*EnrollProgress, error] {
	return func(yield func(*EnrollProgress, error) bool) {
		done := false
		defer func() {
			if !done {
				if _, err := d.SetMode(0); err != nil {
					d.logger.Warn("cannot cancel enrollment session", "err", err)
				}
			}
		}()

		for {
			if _, err := d.SetMode(fptypes.ModeEnrollSession | fptypes.ModeEnrollImage); err != nil {
				yield(nil, err)
				return
			}

			evt, err := d.WaitEvent(ctx, fptypes.EventEnroll)
			if err != nil {
				yield(nil, err)
				return
			}

			progress := &EnrollProgress{
				Result:  evt.Errcode(),
				Percent: evt.EnrollProgress(),
			}
			if progress.Percent >= 100 {
				done = true
				if !progress.Done() {
					yield(nil, newErrorMessage(ErrEnrollFailed, fmt.Sprintf("result %d", progress.Result)))
					return
				}
				if err := d.RefreshInfo(); err != nil {
					yield(nil, err)
					return
				}
				yield(progress, nil)
				return
			}
			if !yield(progress, nil) {
				return
			}

			if _, err := d.SetMode(fptypes.ModeEnrollSession | fptypes.ModeFingerUp); err != nil {
				yield(nil, err)
				return
			}
			if _, err := d.WaitEvent(ctx, fptypes.EventFingerUp); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// WaitFinger blocks until a finger touches the sensor. The finger detection
// mode is cleared again when ctx is done first.
func (d *Device) WaitFinger(ctx context.Context) error {
	if _, err := d.SetMode(fptypes.ModeFingerDown); err != nil {
		return err
	}

	if _, err := d.WaitEvent(ctx, fptypes.EventFingerDown); err != nil {
		_, _ = d.SetMode(0)
		return err
	}

	return nil
}

// Match captures a finger and matches it against the templates on the sensor.
func (d *Device) Match(ctx context.Context) (mo.Either[Matched, NoMatch], error) {
	if _, err := d.SetMode(fptypes.ModeMatch); err != nil {
		return mo.Either[Matched, NoMatch]{}, err
	}

	evt, err := d.WaitEvent(ctx, fptypes.EventMatch)
	if err != nil {
		_, _ = d.SetMode(0)
		return mo.Either[Matched, NoMatch]{}, err
	}

	if !evt.IsMatch() {
		return mo.Right[Matched](NoMatch{Result: evt.Errcode()}), nil
	}

	return mo.Left[Matched, NoMatch](Matched{
		Finger:  evt.MatchIndex(),
		Updated: evt.Errcode() == fptypes.MatchYesUpdated,
	}), nil
}

// CaptureImage captures an image of the given type and reads it back.
// Vendor and quality captures return the whole raw frame.
func (d *Device) CaptureImage(ctx context.Context, captureType fptypes.CaptureType) ([]byte, error) {
	mode, err := d.SetMode(fptypes.ModeCapture.WithCaptureType(captureType))
	if err != nil {
		return nil, err
	}

	if _, err := d.WaitEvent(ctx, fptypes.EventImageReady); err != nil {
		return nil, err
	}

	size := int(d.info.FrameSize)
	if !mode.IsRawCapture() {
		size = int(d.info.Width) * int(d.info.Height) * max(1, int(d.info.BPP)/8)
	}

	return d.readFrame(ctx, fptypes.FrameIndexRawImage, size)
}
