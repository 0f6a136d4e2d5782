package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/conflict"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/offsync/internal/client/tables"
	"github.com/dmitrijs2005/offsync/internal/logging"
)

type downloader struct {
	store     LocalStore
	queue     RetryQueue
	remote    client.RemoteAPI
	tables    *tables.Registry
	resolvers *conflict.Registry
	logger    logging.Logger
}

// run merges every record changed on the server since the checkpoint.
// Records missing from the response are never deleted locally, and records
// with a queued delete are not brought back.
func (d *downloader) run(ctx context.Context, since time.Time, stats *models.SyncStats) error {
	for _, name := range d.tables.Names() {
		changed, err := d.remote.ListChanged(ctx, name, since)
		if err != nil {
			return fmt.Errorf("list changed %s: %w", name, err)
		}

		for _, server := range changed {
			deleted, err := d.queue.HasPending(ctx, name, server.ID, models.OperationDelete)
			if err != nil {
				return fmt.Errorf("check queued delete %s/%s: %w", name, server.ID, err)
			}
			if deleted {
				d.logger.Debug(ctx, "skipped record deleted locally", "table", name, "id", server.ID)
				continue
			}

			conflicted, err := d.merge(ctx, name, server)
			if err != nil {
				return fmt.Errorf("merge %s/%s: %w", name, server.ID, err)
			}
			stats.Downloaded[name]++
			if conflicted {
				stats.Conflicts[name]++
			}
		}
	}
	return nil
}

// merge applies one server record and reports whether it collided with a
// pending local record.
func (d *downloader) merge(ctx context.Context, table string, server *models.Record) (bool, error) {
	server.Table = table
	server.SyncStatus = models.StatusSynced

	local, err := d.store.Get(ctx, table, server.ID)
	if errors.Is(err, records.ErrNotFound) {
		return false, d.store.Put(ctx, table, server)
	}
	if err != nil {
		return false, err
	}

	if !local.Pending() {
		return false, d.store.Put(ctx, table, server)
	}

	winner := d.resolvers.For(table).Resolve(local, server)
	switch winner {
	case local:
		d.logger.Info(ctx, "conflict kept local version", "table", table, "id", local.ID)
		return true, nil
	case server:
		d.logger.Info(ctx, "conflict took server version", "table", table, "id", server.ID)
		return true, d.store.Put(ctx, table, server)
	case nil:
		return true, fmt.Errorf("resolver for %s returned no record", table)
	}

	merged := winner.Clone()
	merged.ID = server.ID
	merged.SyncStatus = models.StatusPending
	d.logger.Info(ctx, "conflict merged", "table", table, "id", server.ID)
	return true, d.store.Put(ctx, table, merged)
}
