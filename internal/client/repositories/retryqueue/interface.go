// Package retryqueue persists failed remote calls so later sync runs can
// replay them in FIFO order.
package retryqueue

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/offsync/internal/client/models"
)

var ErrNotFound = errors.New("retry entry not found")

type Repository interface {
	// Enqueue adds e. If an entry for the same table, record and operation is
	// already queued, only its snapshot is refreshed; the queue position and
	// retry count are kept.
	Enqueue(ctx context.Context, e *models.RetryEntry) error
	// List returns all entries, oldest first.
	List(ctx context.Context) ([]*models.RetryEntry, error)
	Remove(ctx context.Context, id string) error
	// IncrementRetry bumps the retry count and returns the new value.
	IncrementRetry(ctx context.Context, id string) (int, error)
	// HasPending reports whether op is queued for table/recordID.
	HasPending(ctx context.Context, table, recordID string, op models.Operation) (bool, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}
