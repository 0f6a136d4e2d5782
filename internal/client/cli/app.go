package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/offsync/internal/client/backup"
	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/config"
	"github.com/dmitrijs2005/offsync/internal/client/connectivity"
	"github.com/dmitrijs2005/offsync/internal/client/events"
	"github.com/dmitrijs2005/offsync/internal/client/services"
	"github.com/dmitrijs2005/offsync/internal/client/session"
	"github.com/dmitrijs2005/offsync/internal/client/syncer"
	"github.com/dmitrijs2005/offsync/internal/client/tables"
	"github.com/dmitrijs2005/offsync/internal/filex"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/timex"
)

var errNotLoggedIn = errors.New("not logged in, run login first")

type App struct {
	config        *config.Config
	logger        logging.Logger
	repos         *client.Repositories
	session       *session.Session
	bus           *events.Bus
	monitor       *connectivity.Monitor
	engine        *syncer.Engine
	authService   services.AuthService
	recordService services.RecordService
	backups       *backup.Service
	reader        *bufio.Reader
	out           io.Writer
	closers       []io.Closer
	closeOnce     sync.Once
}

// NewApp opens the local database and the log file and connects the API
// client. Close releases all of them.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	for _, path := range []string{c.LogFile, c.DatabasePath} {
		if err := filex.EnsureParentDir(path); err != nil {
			return nil, err
		}
	}
	logger, logCloser := logging.NewFileLogger(logging.FileOptions{Path: c.LogFile, Level: level})

	repos, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr, c.RequestTimeout)
	if err != nil {
		repos.Close()
		logCloser.Close()
		return nil, err
	}

	a, err := newApp(ctx, c, apiClient, repos, logger)
	if err != nil {
		apiClient.Close()
		repos.Close()
		logCloser.Close()
		return nil, err
	}
	a.closers = append(a.closers, logCloser)
	return a, nil
}

// newApp wires the services on top of an API client and open repositories
// and restores a persisted session.
func newApp(ctx context.Context, c *config.Config, api client.Client, repos *client.Repositories, logger logging.Logger) (*App, error) {
	reg, err := tables.FromPrefixes(c.Tables)
	if err != nil {
		return nil, err
	}

	sink, err := newBackupSink(ctx, c.Backup)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:  c,
		logger:  logger,
		repos:   repos,
		session: session.New(),
		bus:     events.NewBus(logger),
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		closers: []io.Closer{repos},
	}

	a.monitor = connectivity.NewMonitor(api, a.bus, logger, connectivity.Options{
		Interval:     c.OnlineCheckInterval,
		ProbeTimeout: c.RequestTimeout,
	})

	a.engine, err = syncer.New(syncer.Deps{
		Store:      repos.Records,
		Queue:      repos.RetryQueue,
		Checkpoint: repos.Checkpoint,
		Remote:     api,
		Tables:     reg,
		Session:    a.session,
		Monitor:    a.monitor,
		Bus:        a.bus,
		Logger:     logger,
	}, syncer.Options{
		Interval:     c.SyncInterval,
		MaxRetries:   c.MaxRetries,
		DropRejected: c.DropRejected,
	})
	if err != nil {
		return nil, err
	}

	a.authService = services.NewAuthService(api, repos.DB, a.session)
	a.recordService = services.NewRecordService(repos.Records, repos.RetryQueue, reg, timex.SystemClock)
	a.backups = backup.NewService(repos.Records, sink, timex.SystemClock, logger)

	if _, err := a.authService.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	a.bus.Subscribe(a.printEvent)
	return a, nil
}

func newBackupSink(ctx context.Context, b config.Backup) (backup.Sink, error) {
	if b.S3Bucket == "" {
		return backup.FileSink{Dir: b.Dir}, nil
	}
	return backup.NewS3Sink(ctx, backup.S3Options{
		Region:    b.S3Region,
		Endpoint:  b.S3Endpoint,
		AccessKey: b.S3AccessKey,
		SecretKey: b.S3SecretKey,
		Bucket:    b.S3Bucket,
		Prefix:    b.S3Prefix,
	})
}

// Close releases the API client, the database and the log file.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.authService != nil {
			errs = append(errs, a.authService.Close(ctx))
		}
		for _, c := range a.closers {
			errs = append(errs, c.Close())
		}
	})
	return errors.Join(errs...)
}

func (a *App) isLoggedIn() bool {
	return a.session.LoggedIn()
}

func (a *App) getStatus() string {
	parts := make([]string, 0, 2)
	if u := a.session.Username(); u != "" {
		parts = append(parts, u)
	}
	if a.monitor.IsOnline() {
		parts = append(parts, "online")
	} else {
		parts = append(parts, "offline")
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// printEvent reports engine and connectivity events to the user.
func (a *App) printEvent(e events.Event) {
	switch e.Type {
	case events.Online:
		a.printf("Switched to online mode\n")
	case events.Offline:
		a.printf("Switched to offline mode\n")
	case events.SyncStart:
		a.printf("Sync started\n")
	case events.SyncComplete:
		s := e.Stats
		a.printf("Sync complete: uploaded %d (failed %d), downloaded %d, conflicts %d, retried %d, dropped %d\n",
			s.Uploaded.Total(), s.UploadFailed.Total(), s.Downloaded.Total(), s.Conflicts.Total(),
			s.Retry.Processed, s.Retry.Dropped)
	case events.SyncError:
		a.printf("Sync failed: %s\n", e.Message)
	case events.FullSyncStart:
		a.printf("Full resync started\n")
	case events.FullSyncComplete:
		a.printf("Full resync complete\n")
	case events.FullSyncError:
		a.printf("Full resync failed: %s\n", e.Message)
	case events.ItemDropped:
		a.printf("Gave up pushing %s/%s: %s\n", e.Table, e.RecordID, e.Message)
	case events.ItemRejected:
		a.printf("Server rejected %s/%s: %s\n", e.Table, e.RecordID, e.Message)
	}
}

// Run starts the connectivity monitor and the background sync loop and
// serves interactive commands until the user exits or ctx ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	wg.Add(2)
	go func() {
		defer wg.Done()
		a.monitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.engine.Run(ctx)
	}()

	a.printf("offsync interactive mode (type 'help' for commands)\n")
	runREPL(ctx, a, a.getStatus, a.reader)
}
