// Package config handles configuration loading and validation for todoq.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Output    OutputConfig    `yaml:"output"`
	DataDir   string          `yaml:"-"` // set by caller, not from config file
}

// ServerConfig holds the REST API settings.
type ServerConfig struct {
	Addr        string   `yaml:"addr" envconfig:"ADDR"`
	APIKey      string   `yaml:"api_key" envconfig:"API_KEY"`
	CORSOrigins []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
}

// DispatchConfig holds the remote agent session settings.
type DispatchConfig struct {
	// SSHHost routes tmux commands over ssh when set; empty means the
	// session runs on this host.
	SSHHost        string        `yaml:"ssh_host" envconfig:"SSH_HOST"`
	Session        string        `yaml:"session" envconfig:"SESSION"`
	Command        string        `yaml:"command" envconfig:"COMMAND"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`
	CaptureLines   int           `yaml:"capture_lines" envconfig:"CAPTURE_LINES"`
}

// DefaultsConfig holds values applied to new todos when the caller omits them.
type DefaultsConfig struct {
	WorkingDirectory string `yaml:"working_directory" envconfig:"WORKING_DIRECTORY"`
	AssignedTo       string `yaml:"assigned_to" envconfig:"ASSIGNED_TO"`
}

// DatabaseConfig holds SQLite pool settings.
type DatabaseConfig struct {
	MaxOpenConns int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns int           `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	BusyTimeout  time.Duration `yaml:"busy_timeout" envconfig:"BUSY_TIMEOUT"`
}

// SchedulerConfig controls the recurrence scheduler.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`
}

// OutputConfig controls the per-todo agent output log.
type OutputConfig struct {
	MaxBytes int `yaml:"max_bytes" envconfig:"MAX_BYTES"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8420",
			CORSOrigins: []string{"*"},
		},
		Dispatch: DispatchConfig{
			Session:        "claude",
			Command:        "./todo",
			ConnectTimeout: 5 * time.Second,
			CaptureLines:   5,
		},
		Defaults: DefaultsConfig{
			AssignedTo: "claude",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			BusyTimeout:  5 * time.Second,
		},
		Scheduler: SchedulerConfig{Enabled: true},
		Output:    OutputConfig{MaxBytes: 1048576},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided
// dataDir. Environment variables prefixed TODOQ_ override file values
// (TODOQ_SERVER_ADDR, TODOQ_DISPATCH_SSH_HOST, ...).
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	if err := envconfig.Process("todoq_server", &cfg.Server); err != nil {
		return nil, fmt.Errorf("server env overrides: %w", err)
	}
	if err := envconfig.Process("todoq_dispatch", &cfg.Dispatch); err != nil {
		return nil, fmt.Errorf("dispatch env overrides: %w", err)
	}
	if err := envconfig.Process("todoq_defaults", &cfg.Defaults); err != nil {
		return nil, fmt.Errorf("defaults env overrides: %w", err)
	}
	if err := envconfig.Process("todoq_database", &cfg.Database); err != nil {
		return nil, fmt.Errorf("database env overrides: %w", err)
	}
	if err := envconfig.Process("todoq_output", &cfg.Output); err != nil {
		return nil, fmt.Errorf("output env overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if c.Dispatch.Session == "" {
		c.Dispatch.Session = defaults.Dispatch.Session
	}
	if c.Dispatch.Command == "" {
		c.Dispatch.Command = defaults.Dispatch.Command
	}
	if c.Dispatch.ConnectTimeout == 0 {
		c.Dispatch.ConnectTimeout = defaults.Dispatch.ConnectTimeout
	}
	if c.Dispatch.CaptureLines == 0 {
		c.Dispatch.CaptureLines = defaults.Dispatch.CaptureLines
	}
	if c.Defaults.AssignedTo == "" {
		c.Defaults.AssignedTo = defaults.Defaults.AssignedTo
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = defaults.Database.BusyTimeout
	}
	if c.Output.MaxBytes == 0 {
		c.Output.MaxBytes = defaults.Output.MaxBytes
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	if c.Dispatch.Session == "" {
		return fmt.Errorf("dispatch.session cannot be empty")
	}
	if c.Dispatch.ConnectTimeout < 0 {
		return fmt.Errorf("dispatch.connect_timeout cannot be negative")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}
	if c.Output.MaxBytes < 1024 {
		return fmt.Errorf("output.max_bytes must be at least 1024")
	}
	return nil
}
