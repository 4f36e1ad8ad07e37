package options

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOptionsDefaults(t *testing.T) {
	oo := NewOptions()

	assert.Equal(t, slog.Default(), oo.Logger)
	assert.NotNil(t, oo.EncMode)
	assert.NotNil(t, oo.Clock)
	assert.NotNil(t, oo.Rand)
	assert.Equal(t, DefaultResponseMax, oo.ResponseMax)
}

func TestNewOptionsOverrides(t *testing.T) {
	fixed := time.Unix(100, 0)
	r := bytes.NewReader([]byte{1, 2, 3})
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	oo := NewOptions(
		WithLogger(logger),
		WithClock(func() time.Time { return fixed }),
		WithRand(r),
		WithResponseMax(64),
	)

	assert.Same(t, logger, oo.Logger)
	assert.Equal(t, fixed, oo.Clock())
	assert.Same(t, r, oo.Rand)
	assert.Equal(t, 64, oo.ResponseMax)
}
