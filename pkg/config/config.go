package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-ctap/fpmcu/pkg/fpsim"
	"github.com/go-ctap/fpmcu/pkg/hostcmd"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "FPMCU_CONFIG_PATH"
	EnvListen     = "FPMCU_LISTEN"
	EnvLogLevel   = "FPMCU_LOG_LEVEL"
)

type Config struct {
	Listen ListenConfig `yaml:"listen"`
	Log    LogConfig    `yaml:"log"`
	Sensor SensorConfig `yaml:"sensor"`
	Sim    fpsim.Config `yaml:"sim"`
}

type ListenConfig struct {
	Network string `yaml:"network" validate:"oneof=tcp tcp4 tcp6 unix"`
	Address string `yaml:"address" validate:"required"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

type SensorConfig struct {
	EncryptionInterval time.Duration `yaml:"encryption_interval" validate:"gte=0"`
	FingerPollingDelay time.Duration `yaml:"finger_polling_delay" validate:"gte=0"`
	ResponseMax        int           `yaml:"response_max" validate:"gte=64"`
	// Locked hides raw frames and passthrough from the host.
	Locked bool `yaml:"locked"`
	// Unavailable runs the sensor task without a sensor.
	Unavailable bool `yaml:"unavailable"`
	// RollbackSecret is the hex encoded device secret. A random one is
	// drawn when empty.
	RollbackSecret string `yaml:"rollback_secret" validate:"omitempty,secret"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			Network: "tcp",
			Address: "127.0.0.1:9515",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sensor: SensorConfig{
			EncryptionInterval: time.Second,
			FingerPollingDelay: 100 * time.Millisecond,
			ResponseMax:        512,
			Locked:             true,
		},
	}
}

// Load reads the configuration from path, or from FPMCU_CONFIG_PATH when
// path is empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if listen := os.Getenv(EnvListen); listen != "" {
		if network, address, ok := strings.Cut(listen, "://"); ok {
			c.Listen.Network = network
			c.Listen.Address = address
		} else {
			c.Listen.Address = listen
		}
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
}

func newValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("secret", func(fl validator.FieldLevel) bool {
		b, err := hex.DecodeString(fl.Field().String())
		return err == nil && len(b) == fpsim.SecretSize
	})

	return v
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if c.Sensor.ResponseMax > hostcmd.MaxPayload {
		return fmt.Errorf("invalid response_max: %d", c.Sensor.ResponseMax)
	}

	return nil
}

// Secret returns the decoded rollback secret, nil when none is configured.
func (c *SensorConfig) Secret() []byte {
	b, _ := hex.DecodeString(c.RollbackSecret)
	return b
}

// NewLogger builds the logger described by the configuration.
func (c *LogConfig) NewLogger(w io.Writer) *slog.Logger {
	lvl := new(slog.LevelVar)
	switch c.Level {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "warn":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
	}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}
