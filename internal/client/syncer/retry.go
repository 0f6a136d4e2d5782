package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/events"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/offsync/internal/client/tables"
)

// DefaultMaxRetries is how many failed replays an entry survives.
const DefaultMaxRetries = 3

type drainer struct {
	pusher
	tables       *tables.Registry
	bus          *events.Bus
	maxRetries   int
	dropRejected bool
}

// run replays queued entries oldest first. Upload replays send the record as
// it is now, not the snapshot taken when the entry was queued.
func (q *drainer) run(ctx context.Context, stats *models.SyncStats) error {
	entries, err := q.queue.List(ctx)
	if err != nil {
		return fmt.Errorf("list retry queue: %w", err)
	}

	for _, e := range entries {
		if err := q.replay(ctx, e); err != nil {
			stats.Retry.Failed++
			if q.fail(ctx, e, err) {
				stats.Retry.Dropped++
			}
			continue
		}
		stats.Retry.Processed++
	}
	return nil
}

func (q *drainer) replay(ctx context.Context, e *models.RetryEntry) error {
	t, ok := q.tables.Lookup(e.Table)
	if !ok {
		q.logger.Warn(ctx, "retry entry for unknown table removed", "table", e.Table, "id", e.RecordID)
		return q.queue.Remove(ctx, e.ID)
	}

	switch e.Operation {
	case models.OperationDelete:
		if err := q.remote.Delete(ctx, e.Table, e.RecordID); err != nil && !errors.Is(err, client.ErrRejected) {
			return err
		}
	default:
		current, err := q.store.Get(ctx, e.Table, e.RecordID)
		switch {
		case errors.Is(err, records.ErrNotFound):
			q.logger.Info(ctx, "retry entry for missing record removed", "table", e.Table, "id", e.RecordID)
		case err != nil:
			return err
		case current.Pending():
			if err := q.push(ctx, t, current); err != nil {
				return err
			}
		}
	}

	return q.queue.Remove(ctx, e.ID)
}

// fail counts a failed replay and evicts the entry once it has failed
// maxRetries times. It reports whether the entry was evicted.
func (q *drainer) fail(ctx context.Context, e *models.RetryEntry, cause error) bool {
	log := q.logger.With("table", e.Table, "id", e.RecordID, "operation", string(e.Operation))

	if isLocalCommit(cause) {
		log.Error(ctx, "replay accepted but not recorded locally", "error", cause)
		if err := q.queue.Remove(ctx, e.ID); err != nil {
			log.Error(ctx, "failed to remove retry entry", "error", err)
		}
		return false
	}

	if q.dropRejected && errors.Is(cause, client.ErrRejected) {
		log.Warn(ctx, "replay rejected, entry removed", "error", cause)
		if err := q.queue.Remove(ctx, e.ID); err != nil {
			log.Error(ctx, "failed to remove retry entry", "error", err)
		}
		q.publish(ctx, events.ItemRejected, e, cause)
		return true
	}

	count, err := q.queue.IncrementRetry(ctx, e.ID)
	if err != nil {
		log.Error(ctx, "failed to count retry", "error", err)
		return false
	}
	if count < q.maxRetries {
		log.Warn(ctx, "replay failed", "retry_count", count, "error", cause)
		return false
	}

	log.Error(ctx, "retry limit reached, entry dropped", "retry_count", count, "error", cause)
	if err := q.queue.Remove(ctx, e.ID); err != nil {
		log.Error(ctx, "failed to remove retry entry", "error", err)
	}
	q.publish(ctx, events.ItemDropped, e, cause)
	return true
}

func (q *drainer) publish(ctx context.Context, typ events.Type, e *models.RetryEntry, cause error) {
	q.bus.Publish(ctx, events.Event{
		Type:     typ,
		At:       q.clock.Now(),
		Table:    e.Table,
		RecordID: e.RecordID,
		Message:  cause.Error(),
	})
}
