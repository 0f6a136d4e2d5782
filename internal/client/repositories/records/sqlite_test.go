package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteRepository(db), db
}

func rec(id string, status models.SyncStatus, at int64, payload string) *models.Record {
	return &models.Record{
		ID:          id,
		Payload:     json.RawMessage(payload),
		LastUpdated: time.Unix(at, 0).UTC(),
		SyncStatus:  status,
	}
}

func TestPutAndGet(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	in := rec("42", models.StatusPending, 100, `{"qty":5}`)
	in.LastUpdated = time.Unix(100, 123456789).UTC()
	require.NoError(t, r.Put(ctx, "orders", in))

	got, err := r.Get(ctx, "orders", "42")
	require.NoError(t, err)
	assert.Equal(t, "orders", got.Table)
	assert.Equal(t, models.StatusPending, got.SyncStatus)
	assert.JSONEq(t, `{"qty":5}`, string(got.Payload))
	assert.True(t, in.LastUpdated.Equal(got.LastUpdated), "nanosecond precision must survive")

	_, err = r.Get(ctx, "crops", "42")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPut_UpsertsAndValidates(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "orders", rec("PO-1", models.StatusSynced, 1, `{"v":1}`)))
	require.NoError(t, r.Put(ctx, "orders", rec("PO-1", models.StatusPending, 2, `{"v":2}`)))

	got, err := r.Get(ctx, "orders", "PO-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got.Payload))
	assert.Equal(t, models.StatusPending, got.SyncStatus)

	require.ErrorIs(t, r.Put(ctx, "", rec("x", models.StatusPending, 1, `{}`)), ErrInvalidInput)
	require.ErrorIs(t, r.Put(ctx, "orders", rec("", models.StatusPending, 1, `{}`)), ErrInvalidInput)
	require.ErrorIs(t, r.Put(ctx, "orders", rec("x", "dirty", 1, `{}`)), ErrInvalidInput)
}

func TestQuery_FiltersByStatusAndMatch(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.BulkPut(ctx, "orders", []*models.Record{
		rec("3", models.StatusPending, 30, `{"n":3}`),
		rec("1", models.StatusPending, 10, `{"n":1}`),
		rec("PO-2", models.StatusSynced, 20, `{"n":2}`),
	}))
	require.NoError(t, r.Put(ctx, "crops", rec("c", models.StatusPending, 5, `{}`)))

	pending, err := r.Query(ctx, "orders", Query{Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "1", pending[0].ID, "ordered by last_updated")
	assert.Equal(t, "3", pending[1].ID)

	all, err := r.Query(ctx, "orders", Query{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	matched, err := r.Query(ctx, "orders", Query{Match: func(rec *models.Record) bool { return rec.ID == "PO-2" }})
	require.NoError(t, err)
	require.Len(t, matched, 1)

	none, err := r.Query(ctx, "unknown", Query{})
	require.NoError(t, err)
	assert.Empty(t, none)

	tables, err := r.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"crops", "orders"}, tables)
}

func TestBulkPut_IsAtomic(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	err := r.BulkPut(ctx, "orders", []*models.Record{
		rec("1", models.StatusSynced, 1, `{}`),
		rec("", models.StatusSynced, 1, `{}`),
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Get(ctx, "orders", "1")
	require.ErrorIs(t, err, ErrNotFound, "first row must be rolled back")
}

func TestMarkSynced_LeavesPayloadAlone(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "orders", rec("PO-1", models.StatusPending, 7, `{"v":1}`)))
	require.NoError(t, r.MarkSynced(ctx, "orders", "PO-1"))

	got, err := r.Get(ctx, "orders", "PO-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)
	assert.JSONEq(t, `{"v":1}`, string(got.Payload))
	assert.Equal(t, int64(7), got.LastUpdated.Unix())

	require.ErrorIs(t, r.MarkSynced(ctx, "orders", "missing"), ErrNotFound)
}

func TestReplaceID(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "orders", rec("101", models.StatusPending, 5, `{"v":"local"}`)))
	require.NoError(t, r.Put(ctx, "orders", rec("SRV-1", models.StatusSynced, 1, `{"v":"stale"}`)))

	require.NoError(t, r.ReplaceID(ctx, "orders", "101", "SRV-1"))

	_, err := r.Get(ctx, "orders", "101")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := r.Get(ctx, "orders", "SRV-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"local"}`, string(got.Payload))

	require.ErrorIs(t, r.ReplaceID(ctx, "orders", "nope", "SRV-9"), ErrNotFound)
	require.NoError(t, r.ReplaceID(ctx, "orders", "SRV-1", "SRV-1"))
}

func TestDeleteAndClear(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "orders", rec("1", models.StatusPending, 1, `{}`)))
	require.NoError(t, r.Put(ctx, "orders", rec("2", models.StatusPending, 1, `{}`)))

	require.NoError(t, r.Delete(ctx, "orders", "1"))
	require.NoError(t, r.Delete(ctx, "orders", "1"), "delete is idempotent")

	_, err := r.Get(ctx, "orders", "1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.Clear(ctx))
	all, err := r.Query(ctx, "orders", Query{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReplaceAll(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "orders", rec("local-only", models.StatusPending, 1, `{}`)))

	err := r.ReplaceAll(ctx, map[string][]*models.Record{
		"orders": {rec("PO-1", models.StatusSynced, 2, `{"a":1}`)},
		"crops":  {rec("CROP-1", models.StatusSynced, 3, `{"b":2}`)},
	})
	require.NoError(t, err)

	_, err = r.Get(ctx, "orders", "local-only")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := r.Get(ctx, "crops", "CROP-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)

	err = r.ReplaceAll(ctx, map[string][]*models.Record{
		"orders": {rec("", models.StatusSynced, 2, `{}`)},
	})
	require.Error(t, err)

	_, err = r.Get(ctx, "crops", "CROP-1")
	require.NoError(t, err, "failed replace must keep previous data")
}
