package records

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
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT tbl, id, payload, last_updated, sync_status FROM records`

func scanRecord(row interface{ Scan(...any) error }) (*models.Record, error) {
	var (
		r       models.Record
		payload []byte
		nanos   int64
		status  string
	)
	if err := row.Scan(&r.Table, &r.ID, &payload, &nanos, &status); err != nil {
		return nil, err
	}
	r.Payload = payload
	r.LastUpdated = time.Unix(0, nanos).UTC()
	r.SyncStatus = models.SyncStatus(status)
	return &r, nil
}

func validate(table string, r *models.Record) error {
	if table == "" || r == nil || r.ID == "" {
		return ErrInvalidInput
	}
	switch r.SyncStatus {
	case models.StatusPending, models.StatusSynced:
	default:
		return fmt.Errorf("%w: sync status %q", ErrInvalidInput, r.SyncStatus)
	}
	return nil
}

func put(ctx context.Context, q dbx.DBTX, table string, r *models.Record) error {
	if err := validate(table, r); err != nil {
		return err
	}
	r.Table = table

	var payload []byte
	if r.Payload != nil {
		payload = r.Payload
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO records (tbl, id, payload, last_updated, sync_status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tbl, id) DO UPDATE SET
			payload = excluded.payload,
			last_updated = excluded.last_updated,
			sync_status = excluded.sync_status
	`, table, r.ID, payload, r.LastUpdated.UnixNano(), string(r.SyncStatus))
	if err != nil {
		return fmt.Errorf("failed to put record %s/%s: %w", table, r.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, table, id string) (*models.Record, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE tbl = ? AND id = ?`, table, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s/%s: %w", table, id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, table string, rec *models.Record) error {
	return put(ctx, r.db, table, rec)
}

func (r *SQLiteRepository) BulkPut(ctx context.Context, table string, rs []*models.Record) error {
	if len(rs) == 0 {
		return nil
	}
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, rec := range rs {
			if err := put(ctx, tx, table, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) Delete(ctx context.Context, table, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE tbl = ? AND id = ?`, table, id)
	if err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", table, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Query(ctx context.Context, table string, q Query) ([]*models.Record, error) {
	query := selectColumns + ` WHERE tbl = ?`
	args := []any{table}
	if q.Status != "" {
		query += ` AND sync_status = ?`
		args = append(args, string(q.Status))
	}
	query += ` ORDER BY last_updated, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	result := make([]*models.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if q.Match != nil && !q.Match(rec) {
			continue
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT tbl FROM records ORDER BY tbl`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, table, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET sync_status = ? WHERE tbl = ? AND id = ?`,
		string(models.StatusSynced), table, id)
	if err != nil {
		return fmt.Errorf("failed to mark %s/%s synced: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ReplaceID(ctx context.Context, table, oldID, newID string) error {
	if oldID == newID {
		return nil
	}
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE tbl = ? AND id = ?`, table, newID); err != nil {
			return fmt.Errorf("failed to clear %s/%s: %w", table, newID, err)
		}
		res, err := tx.ExecContext(ctx, `UPDATE records SET id = ? WHERE tbl = ? AND id = ?`, newID, table, oldID)
		if err != nil {
			return fmt.Errorf("failed to rename %s/%s: %w", table, oldID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, data map[string][]*models.Record) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}
		for table, rs := range data {
			for _, rec := range rs {
				if err := put(ctx, tx, table, rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
