package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate_AssignsPrefixedID(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+records.*\$2\s*\|\|\s*nextval\('record_id_seq'\).*RETURNING\s+id`).
		WithArgs("orders", "PO-", `{"qty":1}`, t0, "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("PO-17"))

	rec := &models.Record{Table: "orders", Payload: json.RawMessage(`{"qty":1}`), LastUpdated: t0, UpdatedBy: "u-1"}
	got, err := repo.Create(context.Background(), rec, "PO-")
	require.NoError(t, err)
	assert.Equal(t, "PO-17", got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_NullPayloadAndUser(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+records`).
		WithArgs("tasks", "TASK-", nil, t0, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("TASK-1"))

	_, err := repo.Create(context.Background(), &models.Record{Table: "tasks", LastUpdated: t0}, "TASK-")
	require.NoError(t, err)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+records`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Record{Table: "tasks", LastUpdated: t0}, "TASK-")
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestUpdate(t *testing.T) {
	cases := []struct {
		name    string
		result  sql.Result
		execErr error
		wantErr error
	}{
		{name: "updated", result: sqlmock.NewResult(0, 1)},
		{name: "missing", result: sqlmock.NewResult(0, 0), wantErr: common.ErrorNotFound},
		{name: "db error", execErr: errors.New("boom")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)

			exp := mock.ExpectExec(`(?s)UPDATE\s+records\s+SET\s+payload\s*=\s*\$3,\s*last_updated\s*=\s*\$4,\s*updated_by\s*=\s*\$5\s+WHERE\s+tbl\s*=\s*\$1\s+AND\s+id\s*=\s*\$2`).
				WithArgs("orders", "PO-1", `{"qty":2}`, t0, "u-1")
			if tc.execErr != nil {
				exp.WillReturnError(tc.execErr)
			} else {
				exp.WillReturnResult(tc.result)
			}

			err := repo.Update(context.Background(), &models.Record{
				Table: "orders", ID: "PO-1", Payload: json.RawMessage(`{"qty":2}`), LastUpdated: t0, UpdatedBy: "u-1",
			})
			switch {
			case tc.execErr != nil:
				require.Error(t, err)
				assert.Contains(t, err.Error(), "db error")
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE\s+FROM\s+records\s+WHERE\s+tbl\s*=\s*\$1\s+AND\s+id\s*=\s*\$2`).
		WithArgs("orders", "PO-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE\s+FROM\s+records`).
		WithArgs("orders", "PO-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "orders", "PO-1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "orders", "PO-2"), common.ErrorNotFound)
}

func TestDelete_RowsAffectedError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE\s+FROM\s+records`).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("no count")))

	err := repo.Delete(context.Background(), "orders", "PO-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected error")
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"tbl", "id", "payload", "last_updated", "updated_by"}).
		AddRow("orders", "PO-1", []byte(`{"qty":1}`), t0, "u-1").
		AddRow("orders", "PO-2", nil, t0.Add(time.Second), "")
}

func TestListChanged(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT\s+tbl,\s*id,\s*payload,\s*last_updated.*FROM\s+records\s+WHERE\s+tbl\s*=\s*\$1\s+AND\s+last_updated\s*>\s*\$2\s+ORDER\s+BY\s+last_updated,\s*id`).
		WithArgs("orders", t0.Add(-time.Hour)).
		WillReturnRows(recordRows())

	got, err := repo.ListChanged(context.Background(), "orders", t0.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "PO-1", got[0].ID)
	assert.JSONEq(t, `{"qty":1}`, string(got[0].Payload))
	assert.Equal(t, "u-1", got[0].UpdatedBy)
	assert.Nil(t, got[1].Payload)
}

func TestListAll(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)FROM\s+records\s+WHERE\s+tbl\s*=\s*\$1\s+ORDER\s+BY`).
		WithArgs("orders").
		WillReturnRows(recordRows())

	got, err := repo.ListAll(context.Background(), "orders")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListAll_Empty(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+records`).
		WithArgs("crops").
		WillReturnRows(sqlmock.NewRows([]string{"tbl", "id", "payload", "last_updated", "updated_by"}))

	got, err := repo.ListAll(context.Background(), "crops")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListAll_QueryError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+records`).WillReturnError(errors.New("gone"))

	_, err := repo.ListAll(context.Background(), "crops")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select records")
}
