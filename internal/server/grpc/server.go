// Package grpc exposes the record service over gRPC.
package grpc

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/rpc"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/services"
	"google.golang.org/grpc"
)

// UserService is the account logic the handlers call.
type UserService interface {
	Register(ctx context.Context, username string, password []byte) (*models.User, error)
	Login(ctx context.Context, username string, password []byte) (*services.LoginResult, error)
}

// RecordService is the record logic the handlers call.
type RecordService interface {
	Create(ctx context.Context, userID, table string, payload json.RawMessage) (*models.Record, error)
	Update(ctx context.Context, userID, table, id string, payload json.RawMessage) (*models.Record, error)
	Delete(ctx context.Context, table, id string) error
	ListChanged(ctx context.Context, table string, since time.Time) ([]*models.Record, error)
	ListAll(ctx context.Context, table string) ([]*models.Record, error)
}

const defaultShutdownTimeout = 10 * time.Second

type GRPCServer struct {
	address         string
	users           UserService
	records         RecordService
	logger          logging.Logger
	jwtSecret       []byte
	shutdownTimeout time.Duration
}

var _ rpc.RecordServiceServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, us UserService, rs RecordService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:         a,
		logger:          l.With("module", "grpc_server"),
		users:           us,
		records:         rs,
		jwtSecret:       []byte(secretKey),
		shutdownTimeout: defaultShutdownTimeout,
	}
}

// WithShutdownTimeout bounds how long in-flight calls may run after the
// server is asked to stop. Non-positive values keep the default.
func (s *GRPCServer) WithShutdownTimeout(d time.Duration) *GRPCServer {
	if d > 0 {
		s.shutdownTimeout = d
	}
	return s
}

// newServer builds the grpc.Server with interceptors and the service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	rpc.RegisterRecordServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")

		graceful := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(graceful)
		}()

		select {
		case <-graceful:
		case <-time.After(s.shutdownTimeout):
			s.logger.Warn(ctx, "graceful stop timed out, closing connections")
			srv.Stop()
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	<-stopped
	return nil
}
