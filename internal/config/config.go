// Package config provides configuration loading and management for the tournament API server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/telemetry"
)

const (
	// StorageTypePostgres stores entities in a PostgreSQL database
	StorageTypePostgres = "postgres"

	// StorageTypeMemory stores entities in process memory, for development and tests
	StorageTypeMemory = "memory"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Storage selects the persistence backend (postgres or memory)
	// Defaults to "postgres" if not specified
	Storage   string            `yaml:"storage,omitempty"`
	Server    *ServerConfig     `yaml:"server,omitempty"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Notify    *NotifyConfig     `yaml:"notify,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	// Address is the listen address (host:port)
	Address string `yaml:"address,omitempty"`

	// GracefulTimeout is how long active requests may drain on shutdown (e.g. "30s")
	GracefulTimeout string `yaml:"gracefulTimeout,omitempty"`
}

// NotifyConfig defines change notification settings
type NotifyConfig struct {
	// BufferSize is the per-subscriber event buffer; a subscriber that falls
	// more than this many notices behind receives a drop notice instead
	BufferSize int `yaml:"bufferSize,omitempty"`

	// KeepAliveInterval is how often idle SSE streams emit a keep-alive
	// comment (e.g. "15s")
	KeepAliveInterval string `yaml:"keepAliveInterval,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// This is the recommended approach for production deployments
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxConns is the maximum number of connections in the pool
	MaxConns int32 `yaml:"maxConns,omitempty"`

	// MinConns is the minimum number of idle connections kept in the pool
	MinConns int32 `yaml:"minConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from TP_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	// Priority 1: Read from file if specified
	if d.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		password := strings.TrimSpace(string(data))
		return password, nil
	}

	// Priority 2: Check environment variable
	if envPassword := os.Getenv("TP_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or TP_DATABASE_PASSWORD environment variable",
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	// URL-escape the password to handle special characters
	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		escapedPassword,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetStorageType returns the storage backend, using "postgres" if not specified
func (c *Config) GetStorageType() string {
	if c.Storage == "" {
		return StorageTypePostgres
	}
	return c.Storage
}

// Validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	switch c.GetStorageType() {
	case StorageTypePostgres:
		if err := validateDatabaseConfig(c.Database); err != nil {
			return err
		}
	case StorageTypeMemory:
		// No database settings needed
	default:
		return fmt.Errorf("storage must be %q or %q, got %q", StorageTypePostgres, StorageTypeMemory, c.Storage)
	}

	if err := validateServerConfig(c.Server); err != nil {
		return err
	}

	if err := validateNotifyConfig(c.Notify); err != nil {
		return err
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("invalid telemetry configuration: %w", err)
		}
	}

	return nil
}

// validateDatabaseConfig validates required database settings
func validateDatabaseConfig(db *DatabaseConfig) error {
	if db == nil {
		return fmt.Errorf("database configuration is required for postgres storage")
	}
	if db.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if db.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if db.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if db.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if db.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(db.ConnMaxLifetime); err != nil {
			return fmt.Errorf("database.connMaxLifetime must be a valid duration (e.g., '30m', '1h'): %w", err)
		}
	}
	return nil
}

// validateServerConfig validates optional server settings
func validateServerConfig(srv *ServerConfig) error {
	if srv == nil {
		return nil
	}
	if srv.GracefulTimeout != "" {
		if _, err := time.ParseDuration(srv.GracefulTimeout); err != nil {
			return fmt.Errorf("server.gracefulTimeout must be a valid duration (e.g., '30s'): %w", err)
		}
	}
	return nil
}

// validateNotifyConfig validates optional notification settings
func validateNotifyConfig(n *NotifyConfig) error {
	if n == nil {
		return nil
	}
	if n.BufferSize < 0 {
		return fmt.Errorf("notify.bufferSize must not be negative, got %d", n.BufferSize)
	}
	if n.KeepAliveInterval != "" {
		if _, err := time.ParseDuration(n.KeepAliveInterval); err != nil {
			return fmt.Errorf("notify.keepAliveInterval must be a valid duration (e.g., '15s'): %w", err)
		}
	}
	return nil
}
