package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fpmcu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvListen, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvListen, "")
	t.Setenv(EnvLogLevel, "")

	path := writeConfig(t, `
listen:
  network: unix
  address: /tmp/fpmcu.sock
log:
  level: debug
  format: json
sensor:
  encryption_interval: 250ms
  locked: false
  rollback_secret: "`+strings.Repeat("ab", 32)+`"
sim:
  max_fingers: 3
  adaptive: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "unix", cfg.Listen.Network)
	assert.Equal(t, "/tmp/fpmcu.sock", cfg.Listen.Address)
	assert.Equal(t, 250*time.Millisecond, cfg.Sensor.EncryptionInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Sensor.FingerPollingDelay)
	assert.False(t, cfg.Sensor.Locked)
	assert.Equal(t, bytes.Repeat([]byte{0xab}, 32), cfg.Sensor.Secret())
	assert.Equal(t, 3, cfg.Sim.MaxFingers)
	assert.True(t, cfg.Sim.Adaptive)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfigPath, writeConfig(t, "log:\n  level: warn\n"))
	t.Setenv(EnvListen, "tcp4://0.0.0.0:9000")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "tcp4", cfg.Listen.Network)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen.Address)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv(EnvListen, "")
	t.Setenv(EnvLogLevel, "")

	for name, content := range map[string]string{
		"network":      "listen:\n  network: udp\n",
		"level":        "log:\n  level: verbose\n",
		"secret":       "sensor:\n  rollback_secret: abcd\n",
		"response max": "sensor:\n  response_max: 16\n",
		"fingers":      "sim:\n  max_fingers: 64\n",
		"syntax":       "listen: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := LogConfig{Level: "warn", Format: "json"}
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
