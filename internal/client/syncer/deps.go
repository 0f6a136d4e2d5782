package syncer

import (
	"context"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/records"
)

// LocalStore is the subset of the records repository the engine needs.
type LocalStore interface {
	Get(ctx context.Context, table, id string) (*models.Record, error)
	Put(ctx context.Context, table string, r *models.Record) error
	Query(ctx context.Context, table string, q records.Query) ([]*models.Record, error)
	MarkSynced(ctx context.Context, table, id string) error
	ReplaceID(ctx context.Context, table, oldID, newID string) error
	ReplaceAll(ctx context.Context, data map[string][]*models.Record) error
}

type RetryQueue interface {
	Enqueue(ctx context.Context, e *models.RetryEntry) error
	List(ctx context.Context) ([]*models.RetryEntry, error)
	Remove(ctx context.Context, id string) error
	IncrementRetry(ctx context.Context, id string) (int, error)
	HasPending(ctx context.Context, table, recordID string, op models.Operation) (bool, error)
	Clear(ctx context.Context) error
}

// Checkpoint persists the lastSyncTimestamp cursor.
type Checkpoint interface {
	LastSync(ctx context.Context) (time.Time, error)
	SetLastSync(ctx context.Context, t time.Time) error
}

// RoleChecker reports the signed-in user's role.
type RoleChecker interface {
	IsAdmin() bool
}

// OnlineChecker reports current connectivity.
type OnlineChecker interface {
	IsOnline() bool
}

type alwaysOnline struct{}

func (alwaysOnline) IsOnline() bool { return true }
