package cli

import (
	"context"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/records"
)

// Sync runs one incremental sync. Progress and the result are printed by the
// event listener.
func (a *App) Sync(ctx context.Context, force bool) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	a.monitor.Probe(ctx)

	_, err := a.engine.StartSync(ctx, force)
	return err
}

// Resync discards local data and downloads everything from the server.
func (a *App) Resync(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	return a.engine.ForceSyncFromServer(ctx)
}

func (a *App) Status(ctx context.Context) error {
	a.monitor.Probe(ctx)

	st, err := a.engine.Status(ctx)
	if err != nil {
		return err
	}
	queued, err := a.repos.RetryQueue.Count(ctx)
	if err != nil {
		return err
	}

	user := a.session.Username()
	if user == "" {
		user = "-"
	} else if a.session.IsAdmin() {
		user += " (admin)"
	}

	last := "never"
	if !st.LastSync.IsZero() {
		last = st.LastSync.Local().Format(time.DateTime)
	}

	a.printf("user:        %s\n", user)
	a.printf("online:      %t\n", st.Online)
	a.printf("phase:       %s\n", st.Phase)
	a.printf("last sync:   %s\n", last)
	a.printf("retry queue: %d\n", queued)

	for _, table := range a.Tables() {
		pending, err := a.repos.Records.Query(ctx, table, records.Query{Status: models.StatusPending})
		if err != nil {
			return err
		}
		a.printf("pending %-8s %d\n", table+":", len(pending))
	}
	return nil
}

// Queue lists the retry queue oldest first.
func (a *App) Queue(ctx context.Context) error {
	entries, err := a.repos.RetryQueue.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		a.printf("%s %-6s %s/%s retries=%d queued=%s\n",
			e.ID, e.Operation, e.Table, e.RecordID, e.RetryCount, e.EnqueuedAt.Local().Format(time.DateTime))
	}
	a.printf("%d entr(ies)\n", len(entries))
	return nil
}
