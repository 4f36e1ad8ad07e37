package sugar

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/go-ctap/fpmcu/pkg/fpsensor"
	"github.com/go-ctap/fpmcu/pkg/fpsim"
	"github.com/go-ctap/fpmcu/pkg/hostcmd"
	"github.com/go-ctap/fpmcu/pkg/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.DiscardHandler)

func listen(t *testing.T, ctx context.Context, driver fpsensor.Driver) string {
	t.Helper()

	sensor, err := fpsensor.New(fpsensor.Config{
		Driver: driver,
		Secret: fpsim.NewRollbackSecretFrom(bytes.Repeat([]byte{0x07}, fpsim.SecretSize)),
		Locker: fpsim.NewLock(false),
	}, options.WithLogger(logger))
	require.NoError(t, err)

	srv := hostcmd.NewServer(options.WithLogger(logger))
	sensor.Register(srv)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	context.AfterFunc(ctx, func() { _ = lis.Close() })

	go func() { _ = sensor.Run(ctx) }()
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			go func() { _ = srv.Serve(ctx, conn) }()
		}
	}()

	return lis.Addr().String()
}

func simulated(t *testing.T) *fpsim.Sensor {
	t.Helper()

	driver, err := fpsim.New(fpsim.Config{})
	require.NoError(t, err)
	return driver
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSelectDeviceTouched(t *testing.T) {
	ctx := testContext(t)

	idle := listen(t, ctx, simulated(t))
	touched := simulated(t)
	touched.PlaceFinger(3)
	addr := listen(t, ctx, touched)

	dev, err := SelectDevice(ctx, "tcp", []string{idle, addr, idle}, options.WithLogger(logger))
	require.NoError(t, err)
	defer func() { _ = dev.Close() }()

	assert.Equal(t, addr, dev.Address)
}

func TestSelectDeviceSkipsUnavailable(t *testing.T) {
	ctx := testContext(t)

	unavailable := listen(t, ctx, fpsensor.UnavailableDriver{})
	addr := listen(t, ctx, simulated(t))

	dev, err := SelectDevice(ctx, "tcp", []string{unavailable, addr}, options.WithLogger(logger))
	require.NoError(t, err)
	defer func() { _ = dev.Close() }()

	assert.Equal(t, addr, dev.Address)
}

func TestSelectDeviceNone(t *testing.T) {
	ctx := testContext(t)

	unavailable := listen(t, ctx, fpsensor.UnavailableDriver{})

	_, err := SelectDevice(ctx, "tcp", []string{unavailable}, options.WithLogger(logger))
	require.ErrorIs(t, err, ErrNoDevices)
}

func TestSelectDeviceCanceled(t *testing.T) {
	ctx := testContext(t)

	first := listen(t, ctx, simulated(t))
	second := listen(t, ctx, simulated(t))

	selectCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, err := SelectDevice(selectCtx, "tcp", []string{first, second}, options.WithLogger(logger))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
