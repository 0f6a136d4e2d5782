// Package records provides the PostgreSQL repository for synced records.
package records

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/server/models"
)

// PostgresRepository implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func payloadArg(p []byte) any {
	if len(p) == 0 {
		return nil
	}
	return string(p)
}

// Create stores r under a new id made of prefix and the next value of the
// shared record sequence. r.ID is set on success.
func (r *PostgresRepository) Create(ctx context.Context, rec *models.Record, prefix string) (*models.Record, error) {
	query := `
		INSERT INTO records (tbl, id, payload, last_updated, updated_by)
		VALUES ($1, $2 || nextval('record_id_seq'), $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.Table, prefix, payloadArg(rec.Payload), rec.LastUpdated, nullable(rec.UpdatedBy)).Scan(&rec.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// Update replaces payload and timestamp of an existing record.
// common.ErrorNotFound is returned when there is no such record.
func (r *PostgresRepository) Update(ctx context.Context, rec *models.Record) error {
	query := `
		UPDATE records SET payload = $3, last_updated = $4, updated_by = $5
		WHERE tbl = $1 AND id = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.Table, rec.ID, payloadArg(rec.Payload), rec.LastUpdated, nullable(rec.UpdatedBy))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, table, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE tbl = $1 AND id = $2`, table, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

const selectColumns = `SELECT tbl, id, payload, last_updated, COALESCE(updated_by::text, '') FROM records`

// ListChanged returns the records of table updated strictly after since,
// oldest first.
func (r *PostgresRepository) ListChanged(ctx context.Context, table string, since time.Time) ([]*models.Record, error) {
	return r.query(ctx, selectColumns+` WHERE tbl = $1 AND last_updated > $2 ORDER BY last_updated, id`, table, since)
}

func (r *PostgresRepository) ListAll(ctx context.Context, table string) ([]*models.Record, error) {
	return r.query(ctx, selectColumns+` WHERE tbl = $1 ORDER BY last_updated, id`, table)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Record, 0)
	for rows.Next() {
		var (
			item    models.Record
			payload []byte
		)
		if err := rows.Scan(&item.Table, &item.ID, &payload, &item.LastUpdated, &item.UpdatedBy); err != nil {
			return nil, err
		}
		if payload != nil {
			item.Payload = append([]byte(nil), payload...)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
