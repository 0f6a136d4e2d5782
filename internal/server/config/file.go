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

// FileConfig is the on-disk form of Config. Durations use timex.Duration so
// they can be written as "24h" or integer nanoseconds.
type FileConfig struct {
	EndpointAddrGRPC            string            `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDSN                 string            `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                   string            `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration timex.Duration    `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	Tables                      map[string]string `json:"tables" yaml:"tables"`
	AdminUsers                  []string          `json:"admin_users" yaml:"admin_users"`
	ShutdownTimeout             timex.Duration    `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel                    string            `json:"log_level" yaml:"log_level"`
}

// parseFile loads the file given with -c or -config into config. YAML is
// used for .yaml and .yml files, JSON otherwise. Values absent from the file
// keep their current value. Read and decode errors panic.
func parseFile(config *Config) {
	path := flagx.ConfigFile(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		panic(err)
	}

	if c.EndpointAddrGRPC != "" {
		config.EndpointAddrGRPC = c.EndpointAddrGRPC
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if len(c.Tables) > 0 {
		config.Tables = c.Tables
	}
	if c.AdminUsers != nil {
		config.AdminUsers = c.AdminUsers
	}
	if c.ShutdownTimeout.Duration > 0 {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
}
