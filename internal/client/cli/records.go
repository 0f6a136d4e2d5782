package cli

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/backup"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/common"
)

var getMultiline = GetMultiline

var errEmptyPassphrase = errors.New("empty passphrase")

// Put creates a record when id is empty and updates record id otherwise. An
// empty payload is read interactively.
func (a *App) Put(ctx context.Context, table, id, payload string) error {
	if payload == "" {
		text, err := getMultiline(a.reader, "Enter JSON payload", a.out)
		if err != nil {
			return err
		}
		payload = text
	}

	var (
		r   *models.Record
		err error
	)
	if id == "" {
		r, err = a.recordService.Create(ctx, table, json.RawMessage(payload))
	} else {
		r, err = a.recordService.Update(ctx, table, id, json.RawMessage(payload))
	}
	if err != nil {
		return err
	}

	a.printf("Saved %s/%s (%s)\n", table, r.ID, r.SyncStatus)
	return nil
}

func (a *App) Get(ctx context.Context, table, id string) error {
	r, err := a.recordService.Get(ctx, table, id)
	if err != nil {
		return err
	}

	a.printf("id:           %s\n", r.ID)
	a.printf("status:       %s\n", r.SyncStatus)
	a.printf("last updated: %s\n", r.LastUpdated.Local().Format(time.DateTime))
	a.printf("payload:      %s\n", r.Payload)
	return nil
}

// List prints one line per record of table.
func (a *App) List(ctx context.Context, table string, pendingOnly bool) error {
	var status models.SyncStatus
	if pendingOnly {
		status = models.StatusPending
	}

	rs, err := a.recordService.List(ctx, table, status)
	if err != nil {
		return err
	}
	for _, r := range rs {
		a.printf("%-38s %-8s %s %s\n", r.ID, r.SyncStatus, r.LastUpdated.Local().Format(time.DateTime), r.Payload)
	}
	a.printf("%d record(s)\n", len(rs))
	return nil
}

func (a *App) Delete(ctx context.Context, table, id string) error {
	if err := a.recordService.Delete(ctx, table, id); err != nil {
		return err
	}
	a.printf("Deleted %s/%s\n", table, id)
	return nil
}

func (a *App) Tables() []string {
	return a.recordService.Tables()
}

// Export writes a backup of the local store under name, encrypted when the
// backup config asks for it.
func (a *App) Export(ctx context.Context, name string) error {
	var passphrase []byte
	if a.config.Backup.Encrypt {
		pw, err := getPassword(a.out)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(pw)
		if len(pw) == 0 {
			return errEmptyPassphrase
		}
		passphrase = pw
	}

	snap, err := a.backups.Backup(ctx, name, passphrase)
	if err != nil {
		return err
	}
	a.printf("Exported %d record(s) to %s\n", snap.Count(), name)
	return nil
}

// Import replaces the local store with the backup saved under name. The
// passphrase is only asked for when the document is encrypted.
func (a *App) Import(ctx context.Context, name string) error {
	snap, err := a.backups.Restore(ctx, name, nil)
	if errors.Is(err, backup.ErrPassphraseRequired) {
		pw, perr := getPassword(a.out)
		if perr != nil {
			return perr
		}
		defer common.WipeByteArray(pw)
		snap, err = a.backups.Restore(ctx, name, pw)
	}
	if err != nil {
		return err
	}
	a.printf("Imported %d record(s) from %s (created %s)\n", snap.Count(), name, snap.CreatedAt.Local().Format(time.DateTime))
	return nil
}
