// Package events is the in-process notification bus of the sync engine.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/logging"
)

type Type string

const (
	Online           Type = "online"
	Offline          Type = "offline"
	SyncStart        Type = "sync_start"
	SyncComplete     Type = "sync_complete"
	SyncError        Type = "sync_error"
	FullSyncStart    Type = "full_sync_start"
	FullSyncComplete Type = "full_sync_complete"
	FullSyncError    Type = "full_sync_error"
	ItemDropped      Type = "item_dropped"
	ItemRejected     Type = "item_rejected"
)

// Event is delivered to every subscriber. Only the fields relevant to Type
// are set.
type Event struct {
	Type     Type
	At       time.Time
	Stats    *models.SyncStats
	Message  string
	Table    string
	RecordID string
}

type Listener func(Event)

type subscription struct {
	id int
	fn Listener
}

// Bus delivers events synchronously, in subscription order, on the
// publishing goroutine. A panicking listener is logged and skipped.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
	logger logging.Logger
}

func NewBus(logger logging.Logger) *Bus {
	return &Bus{logger: logger.With("module", "events")}
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s.fn, e)
	}
}

func (b *Bus) deliver(ctx context.Context, fn Listener, e Event) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error(ctx, "event listener panicked", "event", string(e.Type), "panic", fmt.Sprint(p))
		}
	}()
	fn(e)
}
