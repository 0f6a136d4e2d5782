// Package backup exports the whole local store to a versioned JSON document
// and restores it again. Documents are kept in a Sink: a local directory or
// an S3 bucket.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/offsync/internal/cryptox"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/timex"
)

// FormatVersion is written to every snapshot. Restore refuses other versions.
const FormatVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported backup version")
	// ErrPassphraseRequired is returned by Restore for an encrypted
	// document when no passphrase was given.
	ErrPassphraseRequired = errors.New("backup is encrypted, passphrase required")
)

// Snapshot is the backup document. Records keep their sync status, so
// unpushed changes are still pending after a restore.
type Snapshot struct {
	Version   int                         `json:"version"`
	CreatedAt time.Time                   `json:"created_at"`
	Tables    map[string][]*models.Record `json:"tables"`
}

// Count is the number of records in s.
func (s *Snapshot) Count() int {
	n := 0
	for _, rs := range s.Tables {
		n += len(rs)
	}
	return n
}

// Store is the part of the records repository a backup touches.
type Store interface {
	Tables(ctx context.Context) ([]string, error)
	Query(ctx context.Context, table string, q records.Query) ([]*models.Record, error)
	ReplaceAll(ctx context.Context, data map[string][]*models.Record) error
}

// Sink stores backup documents by name.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
}

type Service struct {
	store  Store
	sink   Sink
	clock  timex.Clock
	logger logging.Logger
}

func NewService(store Store, sink Sink, clock timex.Clock, logger logging.Logger) *Service {
	if clock == nil {
		clock = timex.SystemClock
	}
	return &Service{store: store, sink: sink, clock: clock, logger: logger.With("module", "backup")}
}

// Export reads every table of the store into a snapshot.
func Export(ctx context.Context, store Store, at time.Time) (*Snapshot, error) {
	names, err := store.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	snap := &Snapshot{Version: FormatVersion, CreatedAt: at.UTC(), Tables: make(map[string][]*models.Record, len(names))}
	for _, name := range names {
		rs, err := store.Query(ctx, name, records.Query{})
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		snap.Tables[name] = rs
	}
	return snap, nil
}

// Decode parses and checks a backup document.
func Decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	if snap.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.Version)
	}
	for table, rs := range snap.Tables {
		for _, r := range rs {
			if r == nil || r.ID == "" {
				return nil, fmt.Errorf("decode backup: record without id in %s", table)
			}
		}
	}
	return &snap, nil
}

// Backup writes the current store to the sink under name. A non-empty
// passphrase encrypts the document.
func (s *Service) Backup(ctx context.Context, name string, passphrase []byte) (*Snapshot, error) {
	snap, err := Export(ctx, s.store, s.clock.Now())
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	if len(passphrase) > 0 {
		if data, err = cryptox.Seal(data, passphrase); err != nil {
			return nil, fmt.Errorf("encrypt backup: %w", err)
		}
	}
	if err := s.sink.Write(ctx, name, data); err != nil {
		return nil, fmt.Errorf("write backup %s: %w", name, err)
	}

	s.logger.Info(ctx, "backup written", "name", name, "records", snap.Count(), "encrypted", len(passphrase) > 0)
	return snap, nil
}

// Restore replaces the whole store with the snapshot saved under name.
// passphrase is only consulted for encrypted documents.
func (s *Service) Restore(ctx context.Context, name string, passphrase []byte) (*Snapshot, error) {
	data, err := s.sink.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", name, err)
	}

	if cryptox.IsSealed(data) {
		if len(passphrase) == 0 {
			return nil, ErrPassphraseRequired
		}
		if data, err = cryptox.Open(data, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt backup %s: %w", name, err)
		}
	}

	snap, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceAll(ctx, snap.Tables); err != nil {
		return nil, fmt.Errorf("restore backup %s: %w", name, err)
	}

	s.logger.Info(ctx, "backup restored", "name", name, "records", snap.Count(), "created_at", snap.CreatedAt)
	return snap, nil
}
