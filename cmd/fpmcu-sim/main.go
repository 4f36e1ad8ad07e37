package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-ctap/fpmcu/pkg/config"
	"github.com/go-ctap/fpmcu/pkg/device"
	"github.com/go-ctap/fpmcu/pkg/fpsensor"
	"github.com/go-ctap/fpmcu/pkg/fpsim"
	"github.com/go-ctap/fpmcu/pkg/fptypes"
	"github.com/go-ctap/fpmcu/pkg/hostcmd"
	"github.com/go-ctap/fpmcu/pkg/options"
	"github.com/go-ctap/fpmcu/pkg/sugar"
	"github.com/jessevdk/go-flags"
)

type globalOptions struct {
	Config string `short:"c" long:"config" description:"Path to the YAML configuration"`
	Debug  bool   `short:"d" long:"debug" description:"Log at debug level"`
	// Addresses overrides the configured listen address for client commands.
	Addresses []string `short:"a" long:"address" description:"Sensor address, may be repeated; the sensor touched first is used"`
}

var global globalOptions

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(global.Config)
	if err != nil {
		return nil, nil, err
	}
	if global.Debug {
		cfg.Log.Level = "debug"
	}

	return cfg, cfg.Log.NewLogger(os.Stderr), nil
}

type serveCommand struct {
	Finger  uint8 `long:"finger" description:"Touch the sensor with this finger whenever a capture is requested (0 disables)"`
	Console bool  `long:"console" description:"Read fpcapture, fpenroll, fpmatch and fpclear commands from stdin"`
}

func runConsole(ctx context.Context, console *fpsensor.Console, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var err error
		switch line := strings.TrimSpace(scanner.Text()); line {
		case "":
			continue
		case "fpcapture":
			err = console.Capture(ctx, fptypes.CaptureVendorFormat)
		case "fpenroll":
			err = console.Enroll(ctx)
		case "fpmatch":
			_, err = console.Match(ctx)
		case "fpclear":
			console.Clear()
		default:
			logger.Warn("unknown console command", "command", line)
		}
		if err != nil {
			logger.Warn("console command failed", "err", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *serveCommand) Execute(_ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var secret *fpsim.RollbackSecret
	if b := cfg.Sensor.Secret(); len(b) > 0 {
		secret = fpsim.NewRollbackSecretFrom(b)
	} else if secret, err = fpsim.NewRollbackSecret(rand.Reader); err != nil {
		return err
	}

	var driver fpsensor.Driver = fpsensor.UnavailableDriver{}
	var sim *fpsim.Sensor
	if !cfg.Sensor.Unavailable {
		sim, err = fpsim.New(cfg.Sim)
		if err != nil {
			return err
		}
		driver = sim
		logger.Info("simulated sensor", "serial", sim.Serial())
	}

	opts := []options.Option{
		options.WithLogger(logger),
		options.WithResponseMax(cfg.Sensor.ResponseMax),
	}

	sensor, err := fpsensor.New(fpsensor.Config{
		Driver:             driver,
		Secret:             secret,
		Transport:          fpsim.NewSPI(),
		Locker:             fpsim.NewLock(cfg.Sensor.Locked),
		EncryptionInterval: cfg.Sensor.EncryptionInterval,
		FingerPollingDelay: cfg.Sensor.FingerPollingDelay,
	}, opts...)
	if err != nil {
		return err
	}

	srv := hostcmd.NewServer(opts...)
	sensor.Register(srv)

	lis, err := net.Listen(cfg.Listen.Network, cfg.Listen.Address)
	if err != nil {
		return err
	}
	context.AfterFunc(ctx, func() {
		_ = lis.Close()
	})
	logger.Info("listening", "network", cfg.Listen.Network, "address", lis.Addr().String())

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sensor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sensor task stopped", "err", err)
		}
	}()

	if sim != nil && c.Finger != 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sim.Operate(ctx, sensor.Mode, func() byte { return c.Finger }, 10*time.Millisecond)
		}()
	}

	if c.Console {
		go runConsole(ctx, fpsensor.NewConsole(sensor, os.Stdout), logger)
	}

	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Debug("host connected", "remote", conn.RemoteAddr().String())
			if err := srv.Serve(ctx, conn); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("host connection failed", "err", err)
			}
			_ = conn.Close()
		}()
	}
}

type contextOptions struct {
	UserID string `long:"user" description:"Hex encoded 32-byte user id" default:"0000000000000000000000000000000000000000000000000000000000000000"`
	Seed   string `long:"seed" description:"Hex encoded 32-byte TPM seed" default:"0000000000000000000000000000000000000000000000000000000000000000"`
}

func decodeHex(s string, size int, name string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("invalid %s: %d bytes, expected %d", name, len(b), size)
	}
	return b, nil
}

func dial(ctx context.Context) (*device.Device, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	opts := []options.Option{
		options.WithLogger(logger),
		options.WithResponseMax(cfg.Sensor.ResponseMax),
	}

	if len(global.Addresses) > 1 {
		fmt.Fprintln(os.Stderr, "Touch the sensor to use...")
		return sugar.SelectDevice(ctx, cfg.Listen.Network, global.Addresses, opts...)
	}

	address := cfg.Listen.Address
	if len(global.Addresses) == 1 {
		address = global.Addresses[0]
	}

	return device.Dial(ctx, cfg.Listen.Network, address, opts...)
}

// openContext connects and starts the user context. The seed can only be
// set once per sensor boot, so a refused seed is not an error.
func openContext(ctx context.Context, o *contextOptions) (*device.Device, error) {
	userID, err := decodeHex(o.UserID, fptypes.ContextUserIDBytes, "user id")
	if err != nil {
		return nil, err
	}
	seed, err := decodeHex(o.Seed, fptypes.ContextTPMBytes, "seed")
	if err != nil {
		return nil, err
	}

	dev, err := dial(ctx)
	if err != nil {
		return nil, err
	}

	if err := dev.SetSeed(seed); err != nil && !hostcmd.IsStatus(err, hostcmd.EC_RES_ACCESS_DENIED) {
		_ = dev.Close()
		return nil, err
	}
	if err := dev.SetContext(userID); err != nil {
		_ = dev.Close()
		return nil, err
	}

	return dev, nil
}

type infoCommand struct{}

func (c *infoCommand) Execute(_ []string) error {
	dev, err := dial(context.Background())
	if err != nil {
		return err
	}
	defer func() {
		_ = dev.Close()
	}()

	info := dev.Info()
	fmt.Printf("Sensor: vendor %#08x product %#08x model %#08x version %d\n",
		info.VendorID, info.ProductID, info.ModelID, info.Version)
	fmt.Printf("Image: %dx%d %dbpp, frame %db\n", info.Width, info.Height, info.BPP, info.FrameSize)
	fmt.Printf("Templates: %d/%d valid, dirty %#x, %db each (format %d)\n",
		info.TemplateValid, info.TemplateMax, info.TemplateDirty, info.TemplateSize, info.TemplateVersion)

	stats, err := dev.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("Last capture: %dus, matching %dus, overall %dus (invalid %#x, matched %d)\n",
		stats.CaptureTimeUs, stats.MatchingTimeUs, stats.OverallTimeUs, stats.TimestampsInvalid, stats.TemplateMatched)

	return nil
}

type enrollCommand struct {
	contextOptions
	Out string `short:"o" long:"out" description:"Write the encrypted template to this file" required:"true"`
}

func (c *enrollCommand) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dev, err := openContext(ctx, &c.contextOptions)
	if err != nil {
		return err
	}
	defer func() {
		_ = dev.Close()
	}()

	for progress, err := range dev.Enroll(ctx) {
		if err != nil {
			return err
		}
		fmt.Printf("Enroll capture: result %d (%d%%)\n", progress.Result, progress.Percent)
	}

	template, err := dev.DownloadTemplate(ctx, int(dev.Info().TemplateValid)-1)
	if err != nil {
		return err
	}

	return os.WriteFile(c.Out, template, 0o600)
}

type matchCommand struct {
	contextOptions
	Templates []string `short:"t" long:"template" description:"Encrypted template file to load before matching"`
}

func (c *matchCommand) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dev, err := openContext(ctx, &c.contextOptions)
	if err != nil {
		return err
	}
	defer func() {
		_ = dev.Close()
	}()

	for _, path := range c.Templates {
		template, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := dev.UploadTemplate(template); err != nil {
			return fmt.Errorf("cannot load %s: %w", path, err)
		}
	}

	res, err := dev.Match(ctx)
	if err != nil {
		return err
	}

	if matched, ok := res.Left(); ok {
		fmt.Printf("Match: YES (finger %d, updated %t)\n", matched.Finger, matched.Updated)
		return nil
	}
	fmt.Printf("Match: NO (%d)\n", res.MustRight().Result)

	return nil
}

type captureCommand struct {
	Type uint32 `long:"type" description:"Capture type" default:"1"`
}

func (c *captureCommand) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dev, err := dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = dev.Close()
	}()

	captureType := fptypes.CaptureType(c.Type)
	image, err := dev.CaptureImage(ctx, captureType)
	if err != nil {
		return err
	}

	info := dev.Info()
	if fptypes.Mode(0).WithCaptureType(captureType).IsRawCapture() {
		_, err = os.Stdout.Write(image)
		return err
	}

	return fpsensor.WritePGM(os.Stdout, image, int(info.Width), int(info.Height))
}

func main() {
	parser := flags.NewParser(&global, flags.Default)

	commands := []struct {
		name, short string
		data        any
	}{
		{"serve", "Run the simulated fingerprint MCU", &serveCommand{}},
		{"info", "Show sensor information", &infoCommand{}},
		{"enroll", "Enroll a finger and save its template", &enrollCommand{}},
		{"match", "Load templates and match a finger", &matchCommand{}},
		{"capture", "Capture an image", &captureCommand{}},
	}
	for _, cmd := range commands {
		if _, err := parser.AddCommand(cmd.name, cmd.short, "", cmd.data); err != nil {
			panic(err)
		}
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
