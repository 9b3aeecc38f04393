package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "./ansultad.sqlite", cfg.Database.Path)
	assert.Equal(t, int64(6_000_000), cfg.Radio.ClockHz)
	assert.Equal(t, 50, cfg.Radio.CommandRepetitions)
	assert.Equal(t, 10, cfg.Radio.PairRepetitions)
	assert.Equal(t, 10, cfg.Radio.LearnAttempts)
	assert.Equal(t, 1, cfg.Radio.GetRepeatBudget())
	assert.Equal(t, 32, cfg.Radio.GetQueueSize())
	assert.Equal(t, 50*time.Millisecond, cfg.Radio.PollInterval.Duration())
	assert.Equal(t, "Ansluta", cfg.Fixture.Name)
	assert.Equal(t, 80, cfg.Bridge.Port)
	assert.Equal(t, 30, cfg.Ledger.RetentionDays)
	assert.Equal(t, 4, cfg.EventBus.GetWorkers())
	assert.Equal(t, 100, cfg.EventBus.GetQueueSize())
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout.Duration())
	assert.Empty(t, cfg.Script)
	assert.False(t, cfg.Motion.Enabled)
	assert.Equal(t, "GPIO17", cfg.Motion.Pin)
	assert.Equal(t, "dim_100", cfg.Motion.OnState)
}

func TestParseMotionSection(t *testing.T) {
	cfg, err := Parse([]byte(`
motion:
  enabled: true
  pin: GPIO4
  on_state: dim_50
  timeout: 2m
`))
	require.NoError(t, err)

	assert.True(t, cfg.Motion.Enabled)
	assert.Equal(t, "GPIO4", cfg.Motion.Pin)
	assert.Equal(t, "dim_50", cfg.Motion.OnState)
	assert.Equal(t, 2*time.Minute, cfg.Motion.Timeout.Duration())
	assert.Zero(t, cfg.Motion.ManualTimeout)
}

func TestParseRadioSection(t *testing.T) {
	cfg, err := Parse([]byte(`
radio:
  spi_port: /dev/spidev0.0
  cs_pin: GPIO7
  repeat_budget: 0
  monitor_remote: true
  timing:
    ready_timeout: 250ms
    byte_gap: 2us
fixture:
  address: "2A7F"
`))
	require.NoError(t, err)

	assert.Equal(t, "/dev/spidev0.0", cfg.Radio.SPIPort)
	assert.Equal(t, "GPIO7", cfg.Radio.CSPin)
	assert.Equal(t, "GPIO25", cfg.Radio.ReadyPin)
	assert.Equal(t, 0, cfg.Radio.GetRepeatBudget(), "explicit zero disables replays")
	assert.True(t, cfg.Radio.MonitorRemote)
	assert.Equal(t, 250*time.Millisecond, cfg.Radio.Timing.ReadyTimeout.Duration())
	assert.Equal(t, 2*time.Microsecond, cfg.Radio.Timing.ByteGap.Duration())
	assert.Zero(t, cfg.Radio.Timing.TxSettle)
	assert.Equal(t, "2A7F", cfg.Fixture.Address)
}

func TestParseNonPositiveUsesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
radio:
  poll_interval: -5ms
  command_repetitions: -1
ledger:
  cleanup_interval: -1h
  retention_days: -2
bridge:
  rate_limit_rps: -1
shutdown_timeout: -1s
`))
	require.NoError(t, err)

	assert.Equal(t, 50*time.Millisecond, cfg.Radio.PollInterval.Duration())
	assert.Equal(t, 50, cfg.Radio.CommandRepetitions)
	assert.Equal(t, 24*time.Hour, cfg.Ledger.CleanupInterval.Duration())
	assert.Equal(t, 30, cfg.Ledger.RetentionDays)
	assert.Equal(t, 5.0, cfg.Bridge.RateLimitRPS)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout.Duration())
}

func TestParseBadDuration(t *testing.T) {
	_, err := Parse([]byte("radio:\n  poll_interval: soon\n"))
	assert.Error(t, err)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("ANSULTAD_DB", "/var/lib/ansultad/state.db")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: ${ANSULTAD_DB}
log:
  level: ${ANSULTAD_LOG_LEVEL:debug}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ansultad/state.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
