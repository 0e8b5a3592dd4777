package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/petalapp/tool"
)

// Config is the process-wide configuration for one app. Values come from a
// YAML file, from PETALAPP_* environment variables set by the platform
// supervisor, or from both — the environment wins.
type Config struct {
	// Name is the app identity presented when the transport establishes a
	// session. Required.
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	ID      string `yaml:"id"`

	// ListenAddr is where the transport accepts the platform connection.
	ListenAddr string `yaml:"listen_addr"`

	// DataDir is the app's writable state directory (schedule history lives
	// here by default).
	DataDir string `yaml:"data_dir"`

	// ShutdownGrace bounds how long in-flight executions may run after
	// shutdown begins before they are cancelled and their responses dropped.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    "127.0.0.1:7703",
		ShutdownGrace: 10 * time.Second,
	}
}

// LoadConfig reads a YAML config file and applies environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("app: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("app: parse config: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// ConfigFromEnv builds a configuration purely from defaults and PETALAPP_*
// environment variables, the way a platform-supervised process starts.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PETALAPP_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("PETALAPP_VERSION"); v != "" {
		c.Version = v
	}
	if v := os.Getenv("PETALAPP_ID"); v != "" {
		c.ID = v
	}
	if v := os.Getenv("PETALAPP_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("PETALAPP_DATA"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("PETALAPP_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ShutdownGrace = d
		}
	}
}

// validate reports configuration errors at construction time so the process
// never enters Running with an invalid setup.
func (c Config) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "app name is required (set name or PETALAPP_NAME)")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "listen address is required")
	}
	if c.ShutdownGrace < 0 {
		return tool.NewError(tool.ErrorCodeInvalidConfig, "shutdown grace must not be negative")
	}
	return nil
}
