package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/records"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/users"
)

// fakeManager hands out in-memory repositories that share state across calls.
type fakeManager struct {
	users   *fakeUsersRepo
	records *fakeRecordsRepo
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		users:   &fakeUsersRepo{byName: map[string]*models.User{}},
		records: &fakeRecordsRepo{rows: map[string]*models.Record{}},
	}
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeManager) Users(dbx.DBTX) users.Repository             { return m.users }
func (m *fakeManager) Records(dbx.DBTX) records.Repository         { return m.records }

type fakeUsersRepo struct {
	mu     sync.Mutex
	byName map[string]*models.User
	getErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byName[u.UserName]; ok {
		return nil, common.ErrorAlreadyExists
	}
	cp := *u
	f.byName[u.UserName] = &cp
	return u, nil
}

func (f *fakeUsersRepo) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

type fakeRecordsRepo struct {
	mu   sync.Mutex
	seq  int
	rows map[string]*models.Record
	err  error
}

func key(table, id string) string { return table + "/" + id }

func (f *fakeRecordsRepo) Create(ctx context.Context, r *models.Record, prefix string) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.seq++
	r.ID = fmt.Sprintf("%s%d", prefix, f.seq)
	cp := *r
	f.rows[key(r.Table, r.ID)] = &cp
	return r, nil
}

func (f *fakeRecordsRepo) Update(ctx context.Context, r *models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[key(r.Table, r.ID)]; !ok {
		return common.ErrorNotFound
	}
	cp := *r
	f.rows[key(r.Table, r.ID)] = &cp
	return nil
}

func (f *fakeRecordsRepo) Delete(ctx context.Context, table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[key(table, id)]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, key(table, id))
	return nil
}

func (f *fakeRecordsRepo) list(table string, keep func(*models.Record) bool) []*models.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Record, 0)
	for _, r := range f.rows {
		if r.Table == table && keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.Before(out[j].LastUpdated) })
	return out
}

func (f *fakeRecordsRepo) ListChanged(ctx context.Context, table string, since time.Time) ([]*models.Record, error) {
	return f.list(table, func(r *models.Record) bool { return r.LastUpdated.After(since) }), nil
}

func (f *fakeRecordsRepo) ListAll(ctx context.Context, table string) ([]*models.Record, error) {
	return f.list(table, func(*models.Record) bool { return true }), nil
}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

// Now returns the current time and then advances it by one second.
func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(time.Second)
	return now
}
