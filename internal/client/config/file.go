package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/offsync/internal/flagx"
	"github.com/dmitrijs2005/offsync/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used exclusively for decoding config files. Intervals
// use timex.Duration so they can be written as "3s" or integer nanoseconds.
// Absent fields leave the current value untouched.
type FileConfig struct {
	ServerEndpointAddr  string            `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration    `json:"online_check_interval" yaml:"online_check_interval"`
	SyncInterval        timex.Duration    `json:"sync_interval" yaml:"sync_interval"`
	RequestTimeout      timex.Duration    `json:"request_timeout" yaml:"request_timeout"`
	MaxRetries          int               `json:"max_retries" yaml:"max_retries"`
	DropRejected        *bool             `json:"drop_rejected" yaml:"drop_rejected"`
	DatabasePath        string            `json:"database_path" yaml:"database_path"`
	LogFile             string            `json:"log_file" yaml:"log_file"`
	LogLevel            string            `json:"log_level" yaml:"log_level"`
	Tables              map[string]string `json:"tables" yaml:"tables"`
	Backup              *FileBackup       `json:"backup" yaml:"backup"`
}

type FileBackup struct {
	Encrypt     *bool  `json:"encrypt" yaml:"encrypt"`
	Dir         string `json:"dir" yaml:"dir"`
	S3Bucket    string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Prefix    string `json:"s3_prefix" yaml:"s3_prefix"`
	S3Region    string `json:"s3_region" yaml:"s3_region"`
	S3Endpoint  string `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKey string `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key" yaml:"s3_secret_key"`
}

// parseFile overlays Config with values loaded from the file named by -c or
// -config. Files ending in .yaml or .yml are decoded as YAML, anything else as
// JSON. Panics on read or decode errors.
func parseFile(cfg *Config) {
	path := flagx.ConfigFile(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.ServerEndpointAddr, fc.ServerEndpointAddr)
	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.LogFile, fc.LogFile)
	setString(&cfg.LogLevel, fc.LogLevel)

	if fc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
	if fc.SyncInterval.Duration > 0 {
		cfg.SyncInterval = fc.SyncInterval.Duration
	}
	if fc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.MaxRetries > 0 {
		cfg.MaxRetries = fc.MaxRetries
	}
	if fc.DropRejected != nil {
		cfg.DropRejected = *fc.DropRejected
	}
	if len(fc.Tables) > 0 {
		cfg.Tables = fc.Tables
	}

	if b := fc.Backup; b != nil {
		if b.Encrypt != nil {
			cfg.Backup.Encrypt = *b.Encrypt
		}
		setString(&cfg.Backup.Dir, b.Dir)
		setString(&cfg.Backup.S3Bucket, b.S3Bucket)
		setString(&cfg.Backup.S3Prefix, b.S3Prefix)
		setString(&cfg.Backup.S3Region, b.S3Region)
		setString(&cfg.Backup.S3Endpoint, b.S3Endpoint)
		setString(&cfg.Backup.S3AccessKey, b.S3AccessKey)
		setString(&cfg.Backup.S3SecretKey, b.S3SecretKey)
	}
}
