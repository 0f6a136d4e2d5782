// Package metadata is a small key/value store for client state that is not a
// record: the sync checkpoint and the login session.
package metadata

import (
	"context"
	"errors"
)

// Key names a metadata entry.
type Key string

const (
	KeyLastSync    Key = "last_sync_timestamp"
	KeyUsername    Key = "session_username"
	KeyAccessToken Key = "session_access_token"
	KeyAdmin       Key = "session_is_admin"
)

// SessionKeys are the entries written at login and dropped at logout.
var SessionKeys = []Key{KeyUsername, KeyAccessToken, KeyAdmin}

var ErrEmptyKey = errors.New("metadata key is empty")

// Repository returns (nil, nil) from Get for an absent key.
type Repository interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
	List(ctx context.Context) (map[Key][]byte, error)
	Clear(ctx context.Context) error
}
