package config

import (
	"sort"
	"time"
)

// Config holds runtime settings for the offsync CLI.
//
// Units: all intervals and timeouts are time.Duration values.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration
	RequestTimeout      time.Duration
	MaxRetries          int
	DropRejected        bool
	DatabasePath        string
	LogFile             string
	LogLevel            string
	// Tables maps each synced table to the prefix of its server-assigned ids.
	Tables map[string]string
	Backup Backup
}

// Backup selects where export/import documents live. When S3Bucket is set
// the bucket is used, otherwise Dir. Encrypt makes export ask for a
// passphrase.
type Backup struct {
	Encrypt     bool
	Dir         string
	S3Bucket    string
	S3Prefix    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncInterval = 5 * time.Minute
	c.RequestTimeout = 10 * time.Second
	c.MaxRetries = 3
	c.DropRejected = false
	c.DatabasePath = "offsync.db"
	c.LogFile = "offsync.log"
	c.LogLevel = "info"
	c.Tables = map[string]string{
		"crops":  "CROP-",
		"orders": "PO-",
		"tasks":  "TASK-",
	}
	c.Backup = Backup{Dir: "backups", S3Region: "us-east-1"}
}

// TableNames returns the configured tables in name order.
func (c *Config) TableNames() []string {
	names := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// a config file (if given) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
