package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/offsync/internal/client/syncer"
	"github.com/dmitrijs2005/offsync/internal/client/tables"
	"github.com/dmitrijs2005/offsync/internal/timex"
	"github.com/google/uuid"
)

var (
	ErrUnknownTable   = errors.New("unknown table")
	ErrInvalidPayload = errors.New("payload is not valid JSON")
)

// RecordService is the local data API. Every mutation marks the record
// pending and stamps it with the current time; the sync engine pushes it
// later.
type RecordService interface {
	Create(ctx context.Context, table string, payload json.RawMessage) (*models.Record, error)
	Update(ctx context.Context, table, id string, payload json.RawMessage) (*models.Record, error)
	Delete(ctx context.Context, table, id string) error
	Get(ctx context.Context, table, id string) (*models.Record, error)
	List(ctx context.Context, table string, status models.SyncStatus) ([]*models.Record, error)
	Tables() []string
}

// Enqueuer is the write side of the retry queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, e *models.RetryEntry) error
}

type recordService struct {
	store  records.Repository
	queue  Enqueuer
	tables *tables.Registry
	clock  timex.Clock
}

func NewRecordService(store records.Repository, queue Enqueuer, reg *tables.Registry, clock timex.Clock) RecordService {
	if clock == nil {
		clock = timex.SystemClock
	}
	return &recordService{store: store, queue: queue, tables: reg, clock: clock}
}

func (s *recordService) lookup(table string) (tables.Table, error) {
	t, ok := s.tables.Lookup(table)
	if !ok {
		return tables.Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return t, nil
}

func validPayload(payload json.RawMessage) error {
	if len(payload) == 0 || !json.Valid(payload) {
		return ErrInvalidPayload
	}
	return nil
}

// Create stores a new record under a local surrogate id.
func (s *recordService) Create(ctx context.Context, table string, payload json.RawMessage) (*models.Record, error) {
	if _, err := s.lookup(table); err != nil {
		return nil, err
	}
	if err := validPayload(payload); err != nil {
		return nil, err
	}

	r := &models.Record{
		ID:          uuid.NewString(),
		Payload:     payload,
		LastUpdated: s.clock.Now(),
		SyncStatus:  models.StatusPending,
	}
	if err := s.store.Put(ctx, table, r); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	return r, nil
}

func (s *recordService) Update(ctx context.Context, table, id string, payload json.RawMessage) (*models.Record, error) {
	if _, err := s.lookup(table); err != nil {
		return nil, err
	}
	if err := validPayload(payload); err != nil {
		return nil, err
	}

	r, err := s.store.Get(ctx, table, id)
	if err != nil {
		return nil, err
	}

	r.Payload = payload
	r.LastUpdated = s.clock.Now()
	r.SyncStatus = models.StatusPending
	if err := s.store.Put(ctx, table, r); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	return r, nil
}

// Delete removes the record locally. A record the server already knows is
// also queued for remote deletion.
func (s *recordService) Delete(ctx context.Context, table, id string) error {
	t, err := s.lookup(table)
	if err != nil {
		return err
	}

	r, err := s.store.Get(ctx, table, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, table, id); err != nil {
		return fmt.Errorf("error deleting record: %w", err)
	}

	if !t.IsServerID(id) {
		return nil
	}
	entry := syncer.NewRetryEntry(s.clock, models.OperationDelete, table, id, r.Payload)
	if err := s.queue.Enqueue(ctx, entry); err != nil {
		return fmt.Errorf("error queueing remote delete: %w", err)
	}
	return nil
}

func (s *recordService) Get(ctx context.Context, table, id string) (*models.Record, error) {
	if _, err := s.lookup(table); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, table, id)
}

// List returns a table's records, optionally only those with status.
func (s *recordService) List(ctx context.Context, table string, status models.SyncStatus) ([]*models.Record, error) {
	if _, err := s.lookup(table); err != nil {
		return nil, err
	}
	return s.store.Query(ctx, table, records.Query{Status: status})
}

func (s *recordService) Tables() []string {
	return s.tables.Names()
}
