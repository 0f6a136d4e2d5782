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
	"github.com/dmitrijs2005/offsync/internal/timex"
	"github.com/oklog/ulid/v2"
)

type uploader struct {
	pusher
	tables       *tables.Registry
	bus          *events.Bus
	dropRejected bool
}

// run pushes every pending record of every table. A failed record stays
// pending and is queued for retry; only a failure to list pending records
// aborts the phase.
func (u *uploader) run(ctx context.Context, stats *models.SyncStats) error {
	for _, t := range u.tables.All() {
		pending, err := u.store.Query(ctx, t.Name, records.Query{Status: models.StatusPending})
		if err != nil {
			return fmt.Errorf("list pending %s: %w", t.Name, err)
		}

		for _, r := range pending {
			if err := u.push(ctx, t, r); err != nil {
				stats.UploadFailed[t.Name]++
				u.fail(ctx, t.Name, r, err)
				continue
			}
			stats.Uploaded[t.Name]++
		}
	}
	return nil
}

func (u *uploader) fail(ctx context.Context, table string, r *models.Record, cause error) {
	log := u.logger.With("table", table, "id", r.ID)

	if isLocalCommit(cause) {
		log.Error(ctx, "upload accepted but not recorded locally", "error", cause)
		return
	}

	if u.dropRejected && errors.Is(cause, client.ErrRejected) {
		log.Warn(ctx, "upload rejected, not retrying", "error", cause)
		u.bus.Publish(ctx, events.Event{
			Type:     events.ItemRejected,
			At:       u.clock.Now(),
			Table:    table,
			RecordID: r.ID,
			Message:  cause.Error(),
		})
		return
	}

	log.Warn(ctx, "upload failed, queued for retry", "error", cause)
	entry := NewRetryEntry(u.clock, models.OperationUpload, table, r.ID, r.Payload)
	if err := u.queue.Enqueue(ctx, entry); err != nil {
		log.Error(ctx, "failed to enqueue retry", "error", err)
	}
}

// NewRetryEntry builds a queue entry stamped by clock. The id is a ULID, so
// queue order follows enqueue time.
func NewRetryEntry(clock timex.Clock, op models.Operation, table, recordID string, snapshot []byte) *models.RetryEntry {
	now := clock.Now()
	return &models.RetryEntry{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Operation:  op,
		Table:      table,
		RecordID:   recordID,
		Snapshot:   snapshot,
		EnqueuedAt: now,
	}
}

