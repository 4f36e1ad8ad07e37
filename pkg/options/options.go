package options

import (
	"crypto/rand"
	"io"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
)

type Options struct {
	Logger      *slog.Logger
	EncMode     cbor.EncMode
	Clock       func() time.Time
	Rand        io.Reader
	ResponseMax int
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func WithEncMode(encMode cbor.EncMode) Option {
	return func(opts *Options) {
		opts.EncMode = encMode
	}
}

// WithClock replaces the monotonic time source used for rate limiting and
// timing statistics.
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = now
	}
}

// WithRand replaces the source of nonces and salts.
func WithRand(r io.Reader) Option {
	return func(opts *Options) {
		opts.Rand = r
	}
}

// WithResponseMax limits the payload of a single host command response.
func WithResponseMax(n int) Option {
	return func(opts *Options) {
		opts.ResponseMax = n
	}
}

// DefaultResponseMax is the response payload limit when none is configured.
const DefaultResponseMax = 512

func NewOptions(opts ...Option) *Options {
	encMode, _ := cbor.CTAP2EncOptions().EncMode()
	oo := &Options{
		Logger:      slog.Default(),
		EncMode:     encMode,
		Clock:       time.Now,
		Rand:        rand.Reader,
		ResponseMax: DefaultResponseMax,
	}

	for _, opt := range opts {
		opt(oo)
	}

	return oo
}
