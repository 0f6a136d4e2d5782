// Package tables lists the tables the sync engine processes and how to tell
// a server-assigned id from a local surrogate id in each of them.
package tables

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrDuplicate = errors.New("table already registered")
	ErrInvalid   = errors.New("invalid table definition")
)

// Table describes one synced table.
type Table struct {
	Name string
	// IsServerID reports whether id was assigned by the remote service.
	// Records whose id does not match are created remotely; the rest are
	// updated.
	IsServerID func(id string) bool
}

// PrefixMatcher matches ids that start with prefix, e.g. "PO-".
func PrefixMatcher(prefix string) func(string) bool {
	return func(id string) bool {
		return strings.HasPrefix(id, prefix)
	}
}

// Registry keeps tables in registration order.
type Registry struct {
	mu     sync.RWMutex
	tables []Table
}

func NewRegistry(tables ...Table) (*Registry, error) {
	r := &Registry{}
	for _, t := range tables {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// FromPrefixes builds a registry from table -> server id prefix, ordered by
// table name.
func FromPrefixes(prefixes map[string]string) (*Registry, error) {
	names := make([]string, 0, len(prefixes))
	for name := range prefixes {
		names = append(names, name)
	}
	sort.Strings(names)

	r := &Registry{}
	for _, name := range names {
		prefix := prefixes[name]
		if prefix == "" {
			return nil, fmt.Errorf("%w: %s has an empty id prefix", ErrInvalid, name)
		}
		if err := r.Register(Table{Name: name, IsServerID: PrefixMatcher(prefix)}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(t Table) error {
	if t.Name == "" || t.IsServerID == nil {
		return fmt.Errorf("%w: %q", ErrInvalid, t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tables {
		if existing.Name == t.Name {
			return fmt.Errorf("%w: %s", ErrDuplicate, t.Name)
		}
	}
	r.tables = append(r.tables, t)
	return nil
}

func (r *Registry) Lookup(name string) (Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// All returns a snapshot of the registered tables.
func (r *Registry) All() []Table {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Table, len(r.tables))
	copy(out, r.tables)
	return out
}

func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, t := range all {
		names[i] = t.Name
	}
	return names
}
