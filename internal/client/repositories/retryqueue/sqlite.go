package retryqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, e *models.RetryEntry) error {
	if e.ID == "" || e.Table == "" || e.RecordID == "" {
		return fmt.Errorf("incomplete retry entry %+v", *e)
	}

	var snapshot []byte
	if e.Snapshot != nil {
		snapshot = e.Snapshot
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO retry_queue (id, operation, tbl, record_id, snapshot, enqueued_at, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tbl, record_id, operation) DO UPDATE SET snapshot = excluded.snapshot
	`, e.ID, string(e.Operation), e.Table, e.RecordID, snapshot, e.EnqueuedAt.UnixNano(), e.RetryCount)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s/%s: %w", e.Operation, e.Table, e.RecordID, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.RetryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, operation, tbl, record_id, snapshot, enqueued_at, retry_count
		FROM retry_queue
		ORDER BY enqueued_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list retry queue: %w", err)
	}
	defer rows.Close()

	result := make([]*models.RetryEntry, 0)
	for rows.Next() {
		var (
			e     models.RetryEntry
			op    string
			snap  []byte
			nanos int64
		)
		if err := rows.Scan(&e.ID, &op, &e.Table, &e.RecordID, &snap, &nanos, &e.RetryCount); err != nil {
			return nil, fmt.Errorf("failed to scan retry entry: %w", err)
		}
		e.Operation = models.Operation(op)
		e.Snapshot = snap
		e.EnqueuedAt = time.Unix(0, nanos).UTC()
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate retry queue: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM retry_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove retry entry %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) IncrementRetry(ctx context.Context, id string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`UPDATE retry_queue SET retry_count = retry_count + 1 WHERE id = ? RETURNING retry_count`, id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment retry count of %s: %w", id, err)
	}
	return n, nil
}

func (r *SQLiteRepository) HasPending(ctx context.Context, table, recordID string, op models.Operation) (bool, error) {
	var found bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM retry_queue WHERE tbl = ? AND record_id = ? AND operation = ?)`,
		table, recordID, string(op)).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s %s/%s: %w", op, table, recordID, err)
	}
	return found, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM retry_queue`); err != nil {
		return fmt.Errorf("failed to clear retry queue: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM retry_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count retry queue: %w", err)
	}
	return n, nil
}
