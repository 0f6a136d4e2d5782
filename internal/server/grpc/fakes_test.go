package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/server/auth"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/services"
)

const testSecret = "super-secret"

// fakeUsers accepts any password equal to the username reversed.
type fakeUsers struct {
	admins map[string]bool
	regErr error
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func (f *fakeUsers) Register(ctx context.Context, username string, password []byte) (*models.User, error) {
	if f.regErr != nil {
		return nil, f.regErr
	}
	return &models.User{ID: "id-" + username, UserName: username, Admin: f.admins[username]}, nil
}

func (f *fakeUsers) Login(ctx context.Context, username string, password []byte) (*services.LoginResult, error) {
	if string(password) != reverse(username) {
		return nil, common.ErrorUnauthorized
	}
	admin := f.admins[username]
	tok, err := auth.GenerateToken(auth.Identity{UserID: "id-" + username, Admin: admin}, []byte(testSecret), time.Hour)
	if err != nil {
		return nil, err
	}
	return &services.LoginResult{AccessToken: tok, Admin: admin}, nil
}

// fakeRecords is an in-memory record store with PO- ids for every table.
type fakeRecords struct {
	mu      sync.Mutex
	seq     int
	now     time.Time
	rows    map[string]*models.Record
	err     error
	lastUID string
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), rows: map[string]*models.Record{}}
}

func (f *fakeRecords) tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

func (f *fakeRecords) Create(ctx context.Context, userID, table string, payload json.RawMessage) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.lastUID = userID
	f.seq++
	r := &models.Record{Table: table, ID: fmt.Sprintf("PO-%d", f.seq), Payload: payload, LastUpdated: f.tick(), UpdatedBy: userID}
	cp := *r
	f.rows[table+"/"+r.ID] = &cp
	return r, nil
}

func (f *fakeRecords) Update(ctx context.Context, userID, table, id string, payload json.RawMessage) (*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[table+"/"+id]; !ok {
		return nil, common.ErrorNotFound
	}
	f.lastUID = userID
	r := &models.Record{Table: table, ID: id, Payload: payload, LastUpdated: f.tick(), UpdatedBy: userID}
	cp := *r
	f.rows[table+"/"+id] = &cp
	return r, nil
}

func (f *fakeRecords) Delete(ctx context.Context, table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[table+"/"+id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, table+"/"+id)
	return nil
}

func (f *fakeRecords) ListChanged(ctx context.Context, table string, since time.Time) ([]*models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.Record, 0)
	for _, r := range f.rows {
		if r.Table == table && r.LastUpdated.After(since) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.Before(out[j].LastUpdated) })
	return out, nil
}

func (f *fakeRecords) ListAll(ctx context.Context, table string) ([]*models.Record, error) {
	return f.ListChanged(ctx, table, time.Time{})
}

func newTestServer(us UserService, rs RecordService) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop(), us, rs, testSecret)
}
