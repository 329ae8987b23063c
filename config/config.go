// Package config holds the bridge settings stored in config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName  = "dx7bridge"
	fileName = "config.yaml"
)

// LogConfig controls the rotated log file.
type LogConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

// Config is the main configuration structure
type Config struct {
	// HardwarePort is a case-insensitive fragment of the output port name.
	HardwarePort string `yaml:"hardware_port"`
	VirtualPort  string `yaml:"virtual_port"`
	LibraryDir   string `yaml:"library_dir"`
	// Channel is used for single-voice dumps built from bank entries.
	Channel      uint8         `yaml:"channel"`
	SendDelay    time.Duration `yaml:"send_delay"`
	CarryPartial bool          `yaml:"carry_partial"`
	MaxSysEx     int           `yaml:"max_sysex"`
	QueueSize    int           `yaml:"queue_size"`
	Logs         LogConfig     `yaml:"logs"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.VirtualPort == "" {
		c.VirtualPort = "MIDI Bridge"
	}
	if c.LibraryDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.LibraryDir = filepath.Join(home, "sysex")
		} else {
			c.LibraryDir = "sysex"
		}
	}
	c.Channel &= 0x0F
	if c.SendDelay <= 0 {
		c.SendDelay = 50 * time.Millisecond
	}
	if c.MaxSysEx <= 0 {
		c.MaxSysEx = 65535
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Logs.Directory == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Logs.Directory = filepath.Join(dir, "logs")
		} else {
			c.Logs.Directory = "logs"
		}
	}
	if c.Logs.MaxSizeMB <= 0 {
		c.Logs.MaxSizeMB = 25
	}
	if c.Logs.MaxAgeDays <= 0 {
		c.Logs.MaxAgeDays = 7
	}
	if c.Logs.MaxBackups <= 0 {
		c.Logs.MaxBackups = 5
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load reads the config from the default location, or returns defaults if
// there is none.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes the config to the default location.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
