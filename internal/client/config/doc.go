// Package config loads runtime configuration for the offsync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file (see parseFile) selected via -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # File schema
//
// Intervals use timex.Duration, so values can be either strings like "3s" or
// integer nanoseconds:
//
//	server_endpoint_addr: 127.0.0.1:50051
//	online_check_interval: 3s
//	sync_interval: 5m
//	max_retries: 3
//	drop_rejected: false
//	database_path: offsync.db
//	tables:
//	  orders: PO-
//	  crops: CROP-
//	backup:
//	  encrypt: true
//	  s3_bucket: offsync-backups
//	  s3_endpoint: http://127.0.0.1:9000
//
// Note: This package does not read environment variables directly; use the
// config file or flags to configure values.
package config
