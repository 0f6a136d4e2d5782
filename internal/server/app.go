// Package server wires the record service: PostgreSQL storage, migrations,
// account and record services, and the gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/server/config"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/offsync/internal/server/services"
	"github.com/dmitrijs2005/offsync/internal/timex"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/offsync/internal/server/grpc"
)

var (
	openDB     = repomanager.Open
	newManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	userService   *services.UserService
	recordService *services.RecordService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger := logging.NewJSONLogger(os.Stdout, level)

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := newManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return newApp(c, db, m, logger), nil
}

func newApp(c *config.Config, db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *App {
	return &App{
		config:        c,
		logger:        logger,
		db:            db,
		userService:   services.NewUserService(db, m, c),
		recordService: services.NewRecordService(db, m, c, timex.SystemClock),
	}
}

// Run serves until ctx is cancelled, SIGINT/SIGTERM/SIGQUIT arrives or the
// listener fails. The database is closed on the way out.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "tables", app.config.TableNames())

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.recordService, app.config.SecretKey).
		WithShutdownTimeout(app.config.ShutdownTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.Run(gctx); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(ctx, "db close error", "error", cerr)
	}
	if err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}

	app.logger.Info(ctx, "Stopped")
	return nil
}
