package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
)

// RemoteAPI is the part of the remote service the sync engine uses. Returned
// records carry the server id and timestamp and are marked synced.
type RemoteAPI interface {
	Create(ctx context.Context, table string, payload json.RawMessage) (*models.Record, error)
	Update(ctx context.Context, table, id string, payload json.RawMessage) (*models.Record, error)
	Delete(ctx context.Context, table, id string) error
	ListChanged(ctx context.Context, table string, since time.Time) ([]*models.Record, error)
	ListAll(ctx context.Context, table string) ([]*models.Record, error)
}

// LoginResult is what the server grants on a successful login.
type LoginResult struct {
	AccessToken string
	Admin       bool
}

// Client is the full remote service as seen by the CLI.
type Client interface {
	RemoteAPI
	Close() error
	Ping(ctx context.Context) error
	Register(ctx context.Context, username string, password []byte) error
	Login(ctx context.Context, username string, password []byte) (*LoginResult, error)
	SetAccessToken(token string)
}
