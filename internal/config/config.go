package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML values like "10s" or "3m". yaml.v3 has no native
// handling for time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level configuration for a terminal session and its
// attached services.
type Config struct {
	Terminal   Terminal   `yaml:"terminal"`
	MarketData MarketData `yaml:"market_data"`
	Locate     Locate     `yaml:"locate"`
	Recorder   Recorder   `yaml:"recorder"`
	Stream     Stream     `yaml:"stream"`
	Logging    Logging    `yaml:"logging"`
}

// Terminal holds the connection and credential settings for the trading
// terminal's TCP command interface.
type Terminal struct {
	Host     string   `yaml:"host"`
	Port     string   `yaml:"port"`
	TLS      bool     `yaml:"tls"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	Account  string   `yaml:"account"`
	Timeout  Duration `yaml:"timeout"`
}

// MarketData tunes the per-symbol cache.
type MarketData struct {
	TapeDepth uint `yaml:"tape_depth"`
}

// Locate bounds what a locate purchase may cost. Values are decimal
// strings so no precision is lost in transit.
type Locate struct {
	MaxVolumePct string   `yaml:"max_volume_pct"`
	MaxCostPct   string   `yaml:"max_cost_pct"`
	MaxTotalCost string   `yaml:"max_total_cost"`
	BlockSize    int64    `yaml:"block_size"`
	Cooldown     Duration `yaml:"cooldown"`
}

// Recorder controls market data persistence.
type Recorder struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Stream controls the websocket republisher.
type Stream struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given: a plain
// localhost session with the stock locate limits.
func Default() *Config {
	return &Config{
		Terminal: Terminal{
			Host:    "localhost",
			Port:    "9910",
			Timeout: Duration(30 * time.Second),
		},
		MarketData: MarketData{TapeDepth: 1000},
		Locate: Locate{
			MaxVolumePct: "1",
			MaxCostPct:   "1.5",
			MaxTotalCost: "2.50",
			BlockSize:    100,
			Cooldown:     Duration(3 * time.Second),
		},
		Stream:  Stream{Addr: ":8080"},
		Logging: Logging{Level: "info", Format: "console"},
	}
}

// Load reads the YAML configuration file at the given path over the
// defaults, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding fields when set. Credentials normally arrive this way
// rather than through the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TERMINAL_HOST"); v != "" {
		cfg.Terminal.Host = v
	}
	if v := os.Getenv("TERMINAL_PORT"); v != "" {
		cfg.Terminal.Port = v
	}
	if v := os.Getenv("TERMINAL_USER"); v != "" {
		cfg.Terminal.User = v
	}
	if v := os.Getenv("TERMINAL_PASSWORD"); v != "" {
		cfg.Terminal.Password = v
	}
	if v := os.Getenv("TERMINAL_ACCOUNT"); v != "" {
		cfg.Terminal.Account = v
	}
	if v := os.Getenv("RECORDER_PATH"); v != "" {
		cfg.Recorder.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
