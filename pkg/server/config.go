package server

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds server configuration. Values come from, in order of
// precedence: defaults, the TOML config file, CHATWIRE_* environment
// variables, then CLI arguments (applied by the caller).
type Config struct {
	TCPPort           int    `toml:"tcp_port" envconfig:"TCP_PORT"`
	WSPort            int    `toml:"ws_port" envconfig:"WS_PORT"`                       // 0 = WebSocket listener disabled
	MetricsPort       int    `toml:"metrics_port" envconfig:"METRICS_PORT"`             // 0 = metrics endpoint disabled
	MaxLoginAttempts  int    `toml:"max_login_attempts" envconfig:"MAX_LOGIN_ATTEMPTS"` // consecutive failures before lockout, 1-5
	LoginBlockSeconds int    `toml:"login_block_seconds" envconfig:"LOGIN_BLOCK_SECONDS"`
	CredentialsPath   string `toml:"credentials_path" envconfig:"CREDENTIALS_PATH"`
	DataDir           string `toml:"data_dir" envconfig:"DATA_DIR"` // audit logs are written here
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		TCPPort:           7465,
		WSPort:            0,
		MetricsPort:       9090,
		MaxLoginAttempts:  3,
		LoginBlockSeconds: 10,
		CredentialsPath:   "credentials.txt",
		DataDir:           ".",
	}
}

// LoadConfig loads configuration from a TOML file (missing file falls back
// to defaults) and applies environment variable overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	if err := envconfig.Process("chatwire", &cfg); err != nil {
		return Config{}, fmt.Errorf("environment overrides: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the server refuses to run
// with.
func (c Config) Validate() error {
	if c.TCPPort < 0 || c.TCPPort > 65535 {
		return fmt.Errorf("tcp port out of range: %d", c.TCPPort)
	}
	if c.MaxLoginAttempts < 1 || c.MaxLoginAttempts > 5 {
		return fmt.Errorf("max login attempts must be between 1 and 5, got %d", c.MaxLoginAttempts)
	}
	if c.LoginBlockSeconds < 1 {
		return fmt.Errorf("login block duration must be at least 1 second, got %d", c.LoginBlockSeconds)
	}
	if c.CredentialsPath == "" {
		return fmt.Errorf("credentials path must be set")
	}
	return nil
}

// BlockDuration returns the lockout window as a duration.
func (c Config) BlockDuration() time.Duration {
	return time.Duration(c.LoginBlockSeconds) * time.Second
}
