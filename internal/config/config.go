// Package config loads application configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Messages MessagesConfig `yaml:"messages"`
	Logging  LoggingConfig  `yaml:"logging"`
	Render   RenderConfig   `yaml:"render"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

// DatabaseConfig holds the index database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MessagesConfig holds the directory of saved Gmail message resources.
type MessagesConfig struct {
	Path        string `yaml:"path"`
	Concurrency int    `yaml:"concurrency"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RenderConfig controls how message bodies are served.
type RenderConfig struct {
	SanitizeHTML bool `yaml:"sanitize_html"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	// Use ~/.gmail-message-parser for data directory
	dataDir := filepath.Join(homeDir, ".gmail-message-parser")

	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: "8080",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dataDir, "messages.db"),
		},
		Messages: MessagesConfig{
			Path:        "./messages",
			Concurrency: runtime.NumCPU() * 2,
		},
		Logging: LoggingConfig{Level: "info"},
		Render:  RenderConfig{SanitizeHTML: true},
	}
}

// Load returns the defaults overridden by environment variables.
func Load() (*Config, error) {
	cfg := Default()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads a YAML file over the defaults, then applies environment
// variables. Fields absent from the file keep their default.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	if cfg.Messages.Concurrency < 1 {
		cfg.Messages.Concurrency = 1
	}
	return cfg, nil
}

// applyEnvVars overrides configuration with non-empty environment variables.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("GMP_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("GMP_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("GMP_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("GMP_MESSAGES_PATH"); v != "" {
		c.Messages.Path = v
	}
	if v := os.Getenv("GMP_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Messages.Concurrency = n
		}
	}
	if v := os.Getenv("GMP_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("GMP_SANITIZE_HTML"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Render.SanitizeHTML = b
		}
	}
}

// Address returns the full server address
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

// URL returns the full server URL
func (c *Config) URL() string {
	return "http://" + c.Address()
}

// SlogLevel maps the configured level name to a slog level. Unknown names
// fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
