package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Radio           RadioConfig       `yaml:"radio"`
	Fixture         FixtureConfig     `yaml:"fixture"`
	Bridge          BridgeConfig      `yaml:"bridge"`
	Motion          MotionConfig      `yaml:"motion"`
	Database        DatabaseConfig    `yaml:"database"`
	Log             LogConfig         `yaml:"log"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	Script          string            `yaml:"script"`           // Lua automation script, empty = disabled
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// RadioConfig contains transceiver wiring and protocol timing
type RadioConfig struct {
	SPIPort  string `yaml:"spi_port"`  // periph SPI port name, "" = first available
	ClockHz  int64  `yaml:"clock_hz"`  // SPI clock (default: 6MHz)
	CSPin    string `yaml:"cs_pin"`    // GPIO driving CSn
	ReadyPin string `yaml:"ready_pin"` // GPIO wired to SO for the chip-ready check

	Timing RadioTiming `yaml:"timing"`

	CommandRepetitions int  `yaml:"command_repetitions"` // Frames per light command (default: 50)
	PairRepetitions    int  `yaml:"pair_repetitions"`    // Frames per pair command (default: 10)
	LearnAttempts      int  `yaml:"learn_attempts"`      // RX attempts per learning round (default: 10)
	RepeatBudget       *int `yaml:"repeat_budget"`       // Replays on later polls (default: 1, 0 = off)
	MonitorRemote      bool `yaml:"monitor_remote"`      // Follow the paired remote once learned

	PollInterval Duration `yaml:"poll_interval"` // Driver poll tick (default: 50ms)
	QueueSize    int      `yaml:"queue_size"`    // Pending radio jobs (default: 32)
}

// RadioTiming holds bus and protocol delays. Zero keeps the built-in value.
type RadioTiming struct {
	ReadyTimeout   Duration `yaml:"ready_timeout"`
	ReadyPoll      Duration `yaml:"ready_poll"`
	ReadGap        Duration `yaml:"read_gap"`
	WriteGap       Duration `yaml:"write_gap"`
	StrobeSettle   Duration `yaml:"strobe_settle"`
	ListenWindow   Duration `yaml:"listen_window"`
	TxStrobeSettle Duration `yaml:"tx_strobe_settle"`
	ByteGap        Duration `yaml:"byte_gap"`
	TxSettle       Duration `yaml:"tx_settle"`
}

// GetRepeatBudget returns the repeat budget with default
func (c *RadioConfig) GetRepeatBudget() int {
	if c.RepeatBudget == nil || *c.RepeatBudget < 0 {
		return 1
	}
	return *c.RepeatBudget
}

// GetQueueSize returns queue size with default
func (c *RadioConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 32
	}
	return c.QueueSize
}

// FixtureConfig describes the controlled light
type FixtureConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"` // Hex override, e.g. "2A7F"; skips learning
}

// BridgeConfig contains Hue bridge emulation settings
type BridgeConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Host         string  `yaml:"host"`
	Port         int     `yaml:"port"`
	Name         string  `yaml:"name"`
	AdvertiseIP  string  `yaml:"advertise_ip"`   // Address placed in description.xml
	RateLimitRPS float64 `yaml:"rate_limit_rps"` // API requests per second (default: 5)
	RateBurst    int     `yaml:"rate_burst"`     // Burst size (default: 10)
}

// MotionConfig contains PIR motion detection settings
type MotionConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Pin           string   `yaml:"pin"`            // GPIO wired to the PIR output
	OnState       string   `yaml:"on_state"`       // dim_50 or dim_100 (default: dim_100)
	Timeout       Duration `yaml:"timeout"`        // Quiet time before off (default: 35s)
	ManualTimeout Duration `yaml:"manual_timeout"` // Quiet time after a remote ON (default: 1h)
	ManualGrace   Duration `yaml:"manual_grace"`   // Sensor ignored after a remote change (default: 5s)
	OffWindow     Duration `yaml:"off_window"`     // Repeated remote OFF within this suspends detection (default: 5s)
	PollInterval  Duration `yaml:"poll_interval"`  // Sensor sampling (default: 200ms)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
	JSON   bool   `yaml:"json"`
}

// LedgerConfig contains command ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes and applies defaults
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./ansultad.sqlite"
	}

	// Radio defaults
	if cfg.Radio.ClockHz <= 0 {
		cfg.Radio.ClockHz = 6_000_000
	}
	if cfg.Radio.CSPin == "" {
		cfg.Radio.CSPin = "GPIO8"
	}
	if cfg.Radio.ReadyPin == "" {
		cfg.Radio.ReadyPin = "GPIO25"
	}
	if cfg.Radio.CommandRepetitions <= 0 {
		cfg.Radio.CommandRepetitions = 50
	}
	if cfg.Radio.PairRepetitions <= 0 {
		cfg.Radio.PairRepetitions = 10
	}
	if cfg.Radio.LearnAttempts <= 0 {
		cfg.Radio.LearnAttempts = 10
	}
	if cfg.Radio.PollInterval <= 0 {
		cfg.Radio.PollInterval = Duration(50 * time.Millisecond)
	}

	// Fixture defaults
	if cfg.Fixture.Name == "" {
		cfg.Fixture.Name = "Ansluta"
	}

	// Bridge defaults
	if cfg.Bridge.Host == "" {
		cfg.Bridge.Host = "0.0.0.0"
	}
	if cfg.Bridge.Port <= 0 {
		cfg.Bridge.Port = 80
	}
	if cfg.Bridge.Name == "" {
		cfg.Bridge.Name = "ansultad"
	}
	if cfg.Bridge.RateLimitRPS <= 0 {
		cfg.Bridge.RateLimitRPS = 5.0
	}
	if cfg.Bridge.RateBurst <= 0 {
		cfg.Bridge.RateBurst = 10
	}

	// Motion defaults
	if cfg.Motion.Pin == "" {
		cfg.Motion.Pin = "GPIO17"
	}
	if cfg.Motion.OnState == "" {
		cfg.Motion.OnState = "dim_100"
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval <= 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays <= 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port <= 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	return &cfg, nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
