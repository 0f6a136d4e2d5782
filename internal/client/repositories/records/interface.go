// Package records is the client LocalStore: every synced table's records,
// kept in one SQLite table keyed by (table, id).
package records

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/offsync/internal/client/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid record")
)

// Query filters records of one table. A zero Query matches everything.
type Query struct {
	// Status restricts results to one sync status when non-empty.
	Status models.SyncStatus
	// Match is applied after Status.
	Match func(*models.Record) bool
}

type Repository interface {
	Get(ctx context.Context, table, id string) (*models.Record, error)
	Put(ctx context.Context, table string, r *models.Record) error
	BulkPut(ctx context.Context, table string, rs []*models.Record) error
	Delete(ctx context.Context, table, id string) error
	Query(ctx context.Context, table string, q Query) ([]*models.Record, error)
	Tables(ctx context.Context) ([]string, error)

	// MarkSynced flips the status only; payload and timestamp are left alone.
	MarkSynced(ctx context.Context, table, id string) error
	// ReplaceID moves a record from a local surrogate id to a server id,
	// overwriting any row already stored under newID.
	ReplaceID(ctx context.Context, table, oldID, newID string) error
	Clear(ctx context.Context) error
	// ReplaceAll atomically swaps the whole store for data.
	ReplaceAll(ctx context.Context, data map[string][]*models.Record) error
}
