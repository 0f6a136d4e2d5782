package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/offsync/internal/flagx"
)

// Flags lists every flag parseFlags understands. The CLI strips them before
// handing the rest of the command line to its command parser.
var Flags = []string{"-a", "-i", "-db", "-sync-interval", "-timeout", "-max-retries", "-log-file", "-log-level"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string              address and port of the backend server
//	-i int                 online check interval in seconds
//	-db string             path of the local database
//	-sync-interval dur     background sync interval, e.g. 5m
//	-timeout dur           per-request timeout
//	-max-retries int       failed replays before a queued change is dropped
//	-log-file string       log file path
//	-log-level string      debug, info, warn or error
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], Flags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "local database path")
	fs.DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "background sync interval")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "per-request timeout")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "failed replays before a queued change is dropped")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file path")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
