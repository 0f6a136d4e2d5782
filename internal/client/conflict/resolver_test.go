package conflict

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/stretchr/testify/assert"
)

func at(sec int64) *models.Record {
	return &models.Record{ID: "PO-1", LastUpdated: time.Unix(sec, 0)}
}

func TestLastWriteWins(t *testing.T) {
	tests := []struct {
		name      string
		local     int64
		server    int64
		wantLocal bool
	}{
		{name: "local strictly newer", local: 200, server: 100, wantLocal: true},
		{name: "server newer", local: 100, server: 200, wantLocal: false},
		{name: "tie goes to server", local: 150, server: 150, wantLocal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, server := at(tt.local), at(tt.server)
			got := LastWriteWins{}.Resolve(local, server)
			if tt.wantLocal {
				assert.Same(t, local, got)
			} else {
				assert.Same(t, server, got)
			}
		})
	}
}

func TestRegistry_Override(t *testing.T) {
	serverAlways := ResolverFunc(func(_, server *models.Record) *models.Record { return server })

	reg := NewRegistry(nil)
	reg.Override("orders", serverAlways)

	local, server := at(300), at(100)

	assert.Same(t, local, reg.For("crops").Resolve(local, server), "default is last write wins")
	assert.Same(t, server, reg.For("orders").Resolve(local, server))
}
