package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the carnet CLI.
type Config struct {
	// DataDir is the root directory for everything the client persists.
	DataDir string

	// DatabasePath, CacheDir and StateFile default to locations under
	// DataDir when left empty.
	DatabasePath string
	CacheDir     string
	StateFile    string

	// RemoteDSN is the backend database connection string. Empty means
	// offline-only operation: sync is unavailable but every local feature
	// works.
	RemoteDSN string

	// Blob storage settings. An empty bucket disables uploads.
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	// SignedURLTTL bounds how long a generated attachment URL stays valid.
	SignedURLTTL time.Duration

	// SyncTimeout bounds one full sync cycle.
	SyncTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.DataDir = filepath.Join(home, ".carnet")
	c.S3Region = "us-east-1"
	c.SignedURLTTL = 15 * time.Minute
	c.SyncTimeout = 30 * time.Second
}

// normalize derives the paths that were not set explicitly.
func (c *Config) normalize() {
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "carnet.db")
	}
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(c.DataDir, "attachments")
	}
	if c.StateFile == "" {
		c.StateFile = filepath.Join(c.DataDir, "state.json")
	}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	cfg.normalize()
	return cfg
}
