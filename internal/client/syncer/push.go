package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/offsync/internal/client/tables"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/timex"
)

// errLocalCommit wraps failures to record a remote success locally. The
// remote side already has the change, so these are not queued for retry.
type errLocalCommit struct {
	err error
}

func (e *errLocalCommit) Error() string { return "commit upload locally: " + e.err.Error() }
func (e *errLocalCommit) Unwrap() error { return e.err }

func isLocalCommit(err error) bool {
	var lc *errLocalCommit
	return errors.As(err, &lc)
}

// pusher sends one record to the remote service and records the outcome.
type pusher struct {
	store  LocalStore
	queue  RetryQueue
	remote client.RemoteAPI
	clock  timex.Clock
	logger logging.Logger
}

// push routes r to Create when its id is a local surrogate and to Update when
// it is a server id. On success the record ends up synced under the server id.
//
// The synced flag is set without re-reading the record, so an edit made while
// the call was in flight is marked synced too.
func (p *pusher) push(ctx context.Context, t tables.Table, r *models.Record) error {
	if t.IsServerID(r.ID) {
		if _, err := p.remote.Update(ctx, t.Name, r.ID, r.Payload); err != nil {
			return err
		}
		return p.markSynced(ctx, t.Name, r.ID)
	}

	created, err := p.remote.Create(ctx, t.Name, r.Payload)
	if err != nil {
		return err
	}
	if created == nil || created.ID == "" {
		return fmt.Errorf("create %s/%s: server returned no id", t.Name, r.ID)
	}

	if created.ID != r.ID {
		if err := p.store.ReplaceID(ctx, t.Name, r.ID, created.ID); err != nil {
			if errors.Is(err, records.ErrNotFound) {
				return p.orphaned(ctx, t.Name, r.ID, created.ID)
			}
			return &errLocalCommit{err: err}
		}
	}
	return p.markSynced(ctx, t.Name, created.ID)
}

// orphaned queues a remote delete for a record the server created after the
// local copy was deleted.
func (p *pusher) orphaned(ctx context.Context, table, localID, serverID string) error {
	p.logger.Warn(ctx, "record deleted during upload, queued remote delete",
		"table", table, "id", localID, "server_id", serverID)
	entry := NewRetryEntry(p.clock, models.OperationDelete, table, serverID, nil)
	if err := p.queue.Enqueue(ctx, entry); err != nil {
		return &errLocalCommit{err: err}
	}
	return nil
}

func (p *pusher) markSynced(ctx context.Context, table, id string) error {
	err := p.store.MarkSynced(ctx, table, id)
	if errors.Is(err, records.ErrNotFound) {
		p.logger.Warn(ctx, "record deleted during upload", "table", table, "id", id)
		return nil
	}
	if err != nil {
		return &errLocalCommit{err: err}
	}
	return nil
}
