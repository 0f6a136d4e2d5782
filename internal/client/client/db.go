package client

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/offsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/retryqueue"
	"github.com/dmitrijs2005/offsync/internal/client/storage"
)

type Repositories struct {
	DB         *sql.DB
	Records    *records.SQLiteRepository
	RetryQueue *retryqueue.SQLiteRepository
	Metadata   *metadata.SQLiteRepository
	Checkpoint *metadata.Checkpoint
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

// InitDatabase opens the SQLite database at path (storage.InMemory for a
// throwaway one), migrates it and wires the repositories.
func InitDatabase(ctx context.Context, path string) (*Repositories, error) {
	db, err := storage.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	meta := metadata.NewSQLiteRepository(db)
	return &Repositories{
		DB:         db,
		Records:    records.NewSQLiteRepository(db),
		RetryQueue: retryqueue.NewSQLiteRepository(db),
		Metadata:   meta,
		Checkpoint: metadata.NewCheckpoint(meta),
	}, nil
}
