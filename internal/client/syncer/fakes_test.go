package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/events"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/client/storage"
	"github.com/dmitrijs2005/offsync/internal/client/tables"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeSession struct{ admin bool }

func (s *fakeSession) IsAdmin() bool { return s.admin }

type fakeMonitor struct {
	mu     sync.Mutex
	online bool
}

func (m *fakeMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// fakeRemote records every call. Server ids are "SRV-<n>".
type fakeRemote struct {
	mu      sync.Mutex
	calls   []string
	nextID  int
	now     time.Time
	changed map[string][]*models.Record
	all     map[string][]*models.Record
	since   map[string]time.Time

	createErr  error
	updateErr  error
	deleteErr  error
	changedErr error
	allErr     error

	// hooks run before the call returns, outside the lock
	onCreate func()
	onUpdate func()
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		now:     t0,
		changed: map[string][]*models.Record{},
		all:     map[string][]*models.Record{},
		since:   map[string]time.Time{},
	}
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) Create(ctx context.Context, table string, payload json.RawMessage) (*models.Record, error) {
	f.record("create " + table)
	if f.onCreate != nil {
		f.onCreate()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	return &models.Record{
		ID:          fmt.Sprintf("SRV-%d", f.nextID),
		Table:       table,
		Payload:     payload,
		LastUpdated: f.now,
		SyncStatus:  models.StatusSynced,
	}, nil
}

func (f *fakeRemote) Update(ctx context.Context, table, id string, payload json.RawMessage) (*models.Record, error) {
	f.record("update " + table + "/" + id)
	if f.onUpdate != nil {
		f.onUpdate()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &models.Record{ID: id, Table: table, Payload: payload, LastUpdated: f.now, SyncStatus: models.StatusSynced}, nil
}

func (f *fakeRemote) Delete(ctx context.Context, table, id string) error {
	f.record("delete " + table + "/" + id)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteErr
}

func (f *fakeRemote) ListChanged(ctx context.Context, table string, since time.Time) ([]*models.Record, error) {
	f.record("list_changed " + table)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since[table] = since
	if f.changedErr != nil {
		return nil, f.changedErr
	}
	return cloneAll(f.changed[table]), nil
}

func (f *fakeRemote) Since(table string) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.since[table]
}

func (f *fakeRemote) ListAll(ctx context.Context, table string) ([]*models.Record, error) {
	f.record("list_all " + table)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allErr != nil {
		return nil, f.allErr
	}
	return cloneAll(f.all[table]), nil
}

func cloneAll(rs []*models.Record) []*models.Record {
	out := make([]*models.Record, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Clone())
	}
	return out
}

// eventLog collects published events.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) listen(e events.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) Types() []events.Type {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.Type, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) OfType(typ events.Type) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	repos   *client.Repositories
	remote  *fakeRemote
	clock   *fakeClock
	session *fakeSession
	monitor *fakeMonitor
	bus     *events.Bus
	events  *eventLog
	engine  *Engine
}

// newHarness builds an engine over an in-memory database with two tables:
// orders (server ids "PO-...") and tasks (server ids "SRV-...").
func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	ctx := context.Background()
	repos, err := client.InitDatabase(ctx, storage.InMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	reg, err := tables.NewRegistry(
		tables.Table{Name: "orders", IsServerID: tables.PrefixMatcher("PO-")},
		tables.Table{Name: "tasks", IsServerID: tables.PrefixMatcher("SRV-")},
	)
	require.NoError(t, err)

	h := &harness{
		repos:   repos,
		remote:  newFakeRemote(),
		clock:   &fakeClock{now: t0},
		session: &fakeSession{},
		monitor: &fakeMonitor{online: true},
		bus:     events.NewBus(logging.Nop()),
		events:  &eventLog{},
	}
	h.bus.Subscribe(h.events.listen)

	h.engine, err = New(Deps{
		Store:      repos.Records,
		Queue:      repos.RetryQueue,
		Checkpoint: repos.Checkpoint,
		Remote:     h.remote,
		Tables:     reg,
		Session:    h.session,
		Monitor:    h.monitor,
		Bus:        h.bus,
		Clock:      h.clock,
		Logger:     logging.Nop(),
	}, opts)
	require.NoError(t, err)
	return h
}

func (h *harness) put(t *testing.T, table, id, payload string, status models.SyncStatus, at time.Time) {
	t.Helper()
	err := h.repos.Records.Put(context.Background(), table, &models.Record{
		ID:          id,
		Payload:     json.RawMessage(payload),
		LastUpdated: at,
		SyncStatus:  status,
	})
	require.NoError(t, err)
}

func (h *harness) get(t *testing.T, table, id string) *models.Record {
	t.Helper()
	r, err := h.repos.Records.Get(context.Background(), table, id)
	require.NoError(t, err)
	return r
}

func (h *harness) queueLen(t *testing.T) int {
	t.Helper()
	n, err := h.repos.RetryQueue.Count(context.Background())
	require.NoError(t, err)
	return n
}

type manualTicker struct {
	ch chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               {}
