package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/carnetapp/carnet/internal/flagx"
	"github.com/carnetapp/carnet/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "15m"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config (which uses time.Duration).
type JsonConfig struct {
	DataDir      string         `json:"data_dir"`
	DatabasePath string         `json:"database_path"`
	CacheDir     string         `json:"cache_dir"`
	StateFile    string         `json:"state_file"`
	RemoteDSN    string         `json:"remote_dsn"`
	S3Endpoint   string         `json:"s3_endpoint"`
	S3Region     string         `json:"s3_region"`
	S3Bucket     string         `json:"s3_bucket"`
	S3AccessKey  string         `json:"s3_access_key"`
	S3SecretKey  string         `json:"s3_secret_key"`
	SignedURLTTL timex.Duration `json:"signed_url_ttl"`
	SyncTimeout  timex.Duration `json:"sync_timeout"`
}

// parseJson overlays Config with values loaded from a JSON file selected via
// the -c or -config flags. Empty JSON fields keep the earlier value, so a
// partial file only overrides what it names. Panics on read or unmarshal
// errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.CacheDir != "" {
		cfg.CacheDir = jc.CacheDir
	}
	if jc.StateFile != "" {
		cfg.StateFile = jc.StateFile
	}
	if jc.RemoteDSN != "" {
		cfg.RemoteDSN = jc.RemoteDSN
	}
	if jc.S3Endpoint != "" {
		cfg.S3Endpoint = jc.S3Endpoint
	}
	if jc.S3Region != "" {
		cfg.S3Region = jc.S3Region
	}
	if jc.S3Bucket != "" {
		cfg.S3Bucket = jc.S3Bucket
	}
	if jc.S3AccessKey != "" {
		cfg.S3AccessKey = jc.S3AccessKey
	}
	if jc.S3SecretKey != "" {
		cfg.S3SecretKey = jc.S3SecretKey
	}
	if jc.SignedURLTTL.Duration != 0 {
		cfg.SignedURLTTL = time.Duration(jc.SignedURLTTL.Duration)
	}
	if jc.SyncTimeout.Duration != 0 {
		cfg.SyncTimeout = time.Duration(jc.SyncTimeout.Duration)
	}
}
