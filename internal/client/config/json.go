package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/okatashev/nimbus/internal/flagx"
	"github.com/okatashev/nimbus/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds.
type JsonConfig struct {
	DBPath                 string         `json:"db_path"`
	DataDir                string         `json:"data_dir"`
	ServerURL              string         `json:"server_url"`
	MaxConcurrentTransfers int            `json:"max_concurrent_transfers"`
	TransferBackend        string         `json:"transfer_backend"`
	S3Bucket               string         `json:"s3_bucket"`
	S3Region               string         `json:"s3_region"`
	RequestTimeout         timex.Duration `json:"request_timeout"`
	LogLevel               string         `json:"log_level"`
}

// parseJson overlays cfg with values from the JSON file named by the -c or
// -config flag. Absent fields keep their current value. Panics on read or
// unmarshal errors; there is no running without a readable config once one
// was requested.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DBPath != "" {
		cfg.DBPath = jc.DBPath
	}
	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.MaxConcurrentTransfers > 0 {
		cfg.MaxConcurrentTransfers = jc.MaxConcurrentTransfers
	}
	if jc.TransferBackend != "" {
		cfg.TransferBackend = jc.TransferBackend
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}
