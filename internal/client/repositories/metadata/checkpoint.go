package metadata

import (
	"context"
	"fmt"
	"time"
)

// Checkpoint stores the incremental sync cursor under KeyLastSync as an
// RFC 3339 timestamp with nanoseconds.
type Checkpoint struct {
	repo Repository
}

func NewCheckpoint(repo Repository) *Checkpoint {
	return &Checkpoint{repo: repo}
}

// LastSync returns the zero time when no sync has completed yet.
func (c *Checkpoint) LastSync(ctx context.Context) (time.Time, error) {
	raw, err := c.repo.Get(ctx, KeyLastSync)
	if err != nil {
		return time.Time{}, err
	}
	if len(raw) == 0 {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("checkpoint %q is not a timestamp: %w", raw, err)
	}
	return t, nil
}

func (c *Checkpoint) SetLastSync(ctx context.Context, t time.Time) error {
	return c.repo.Set(ctx, KeyLastSync, []byte(t.UTC().Format(time.RFC3339Nano)))
}
