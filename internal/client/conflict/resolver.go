// Package conflict decides which side wins when a downloaded record collides
// with a local record that still has unpushed changes.
package conflict

import (
	"sync"

	"github.com/dmitrijs2005/offsync/internal/client/models"
)

// Resolver picks the winner of a conflict. Returning local keeps the local
// record (still pending); returning server accepts the server copy. Any
// other record is treated as a merge result and stored as pending so it is
// pushed on the next run.
type Resolver interface {
	Resolve(local, server *models.Record) *models.Record
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(local, server *models.Record) *models.Record

func (f ResolverFunc) Resolve(local, server *models.Record) *models.Record {
	return f(local, server)
}

// LastWriteWins keeps the local record only when it is strictly newer than
// the server's. Ties go to the server.
type LastWriteWins struct{}

func (LastWriteWins) Resolve(local, server *models.Record) *models.Record {
	if local.LastUpdated.After(server.LastUpdated) {
		return local
	}
	return server
}

// Registry returns the resolver of a table: a per-table override when one is
// set, else the default.
type Registry struct {
	mu        sync.RWMutex
	fallback  Resolver
	overrides map[string]Resolver
}

// NewRegistry uses LastWriteWins when fallback is nil.
func NewRegistry(fallback Resolver) *Registry {
	if fallback == nil {
		fallback = LastWriteWins{}
	}
	return &Registry{fallback: fallback, overrides: make(map[string]Resolver)}
}

func (r *Registry) Override(table string, res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[table] = res
}

func (r *Registry) For(table string) Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if res, ok := r.overrides[table]; ok {
		return res
	}
	return r.fallback
}
