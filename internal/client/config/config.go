// Package config assembles the client's runtime settings from three layers:
// built-in defaults, an optional JSON file, and command-line flags, each
// overriding the previous one.
package config

import "time"

// Backend names for content transfers.
const (
	BackendHTTP = "http"
	BackendS3   = "s3"
)

// Config holds the runtime settings of the sync client.
type Config struct {
	// DBPath is the SQLite database file holding the local mirror.
	DBPath string
	// DataDir is the root directory for downloaded content.
	DataDir string
	// ServerURL is the default server for new logins.
	ServerURL string
	// MaxConcurrentTransfers caps the transfer worker pool.
	MaxConcurrentTransfers int
	// TransferBackend selects where content moves through: the server's
	// HTTP API or an S3 bucket for offloaded accounts.
	TransferBackend string
	// S3Bucket and S3Region configure the S3 backend. Ignored otherwise.
	S3Bucket string
	S3Region string
	// RequestTimeout bounds every metadata call to the server.
	RequestTimeout time.Duration
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DBPath = "nimbus.db"
	c.DataDir = "data"
	c.MaxConcurrentTransfers = 3
	c.TransferBackend = BackendHTTP
	c.RequestTimeout = 30 * time.Second
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
