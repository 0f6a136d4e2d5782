package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/server/config"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/offsync/internal/timex"
)

// RecordService validates and stamps record writes and serves change feeds.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tables      map[string]string
	clock       timex.Clock
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, clock timex.Clock) *RecordService {
	return &RecordService{db: db, repomanager: m, tables: cfg.Tables, clock: clock}
}

func (s *RecordService) prefix(table string) (string, error) {
	p, ok := s.tables[table]
	if !ok {
		return "", fmt.Errorf("%w: unknown table %q", common.ErrorInvalidInput, table)
	}
	return p, nil
}

// now is truncated to what timestamptz stores, so a timestamp handed to the
// client compares equal to the one read back later.
func (s *RecordService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

func validPayload(p json.RawMessage) error {
	if len(p) > 0 && !json.Valid(p) {
		return fmt.Errorf("%w: payload is not valid JSON", common.ErrorInvalidInput)
	}
	return nil
}

// Create stores payload as a new record of table and returns it with its
// server id and timestamp.
func (s *RecordService) Create(ctx context.Context, userID, table string, payload json.RawMessage) (*models.Record, error) {
	prefix, err := s.prefix(table)
	if err != nil {
		return nil, err
	}
	if err := validPayload(payload); err != nil {
		return nil, err
	}

	rec := &models.Record{Table: table, Payload: payload, LastUpdated: s.now(), UpdatedBy: userID}
	return s.repomanager.Records(s.db).Create(ctx, rec, prefix)
}

// Update replaces the payload of an existing record. Missing records yield
// common.ErrorNotFound.
func (s *RecordService) Update(ctx context.Context, userID, table, id string, payload json.RawMessage) (*models.Record, error) {
	if _, err := s.prefix(table); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", common.ErrorInvalidInput)
	}
	if err := validPayload(payload); err != nil {
		return nil, err
	}

	rec := &models.Record{Table: table, ID: id, Payload: payload, LastUpdated: s.now(), UpdatedBy: userID}
	if err := s.repomanager.Records(s.db).Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *RecordService) Delete(ctx context.Context, table, id string) error {
	if _, err := s.prefix(table); err != nil {
		return err
	}
	return s.repomanager.Records(s.db).Delete(ctx, table, id)
}

// ListChanged returns records of table updated after since. A zero since
// returns every record.
func (s *RecordService) ListChanged(ctx context.Context, table string, since time.Time) ([]*models.Record, error) {
	if _, err := s.prefix(table); err != nil {
		return nil, err
	}
	if since.IsZero() {
		return s.repomanager.Records(s.db).ListAll(ctx, table)
	}
	return s.repomanager.Records(s.db).ListChanged(ctx, table, since)
}

func (s *RecordService) ListAll(ctx context.Context, table string) ([]*models.Record, error) {
	if _, err := s.prefix(table); err != nil {
		return nil, err
	}
	return s.repomanager.Records(s.db).ListAll(ctx, table)
}
