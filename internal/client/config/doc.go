// Package config loads runtime configuration for the carnet CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   data directory holding the database, cache and state file
//	-r string   remote backend DSN
//	-t int      sync timeout (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "15m" or integer nanoseconds:
//
//	{
//	  "data_dir": "/var/lib/carnet",
//	  "remote_dsn": "postgres://carnet@db/carnet",
//	  "s3_endpoint": "http://minio:9000",
//	  "s3_region": "us-east-1",
//	  "s3_bucket": "carnet-attachments",
//	  "s3_access_key": "...",
//	  "s3_secret_key": "...",
//	  "signed_url_ttl": "15m",
//	  "sync_timeout": "30s"
//	}
//
// Paths not set explicitly (database, cache directory, state file) are
// derived from the data directory after all sources have been applied.
package config
