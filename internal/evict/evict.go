// Package evict bounds the content cache by age.
package evict

import (
	"context"
	"fmt"
	"time"
)

// DefaultRetention is how long a cached record is kept after it was written.
const DefaultRetention = 14 * 24 * time.Hour

// Deleter removes cached records written before cutoff.
type Deleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Evictor struct {
	store     Deleter
	retention time.Duration
}

// New returns an Evictor; a non-positive retention means DefaultRetention.
func New(store Deleter, retention time.Duration) *Evictor {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Evictor{store: store, retention: retention}
}

func (e *Evictor) Retention() time.Duration {
	return e.retention
}

// Sweep deletes every record cached before now minus the retention. It is
// not retried; the next scheduled sweep picks up whatever remains.
func (e *Evictor) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := e.store.DeleteOlderThan(ctx, now.Add(-e.retention))
	if err != nil {
		return 0, fmt.Errorf("evict: %w", err)
	}
	return n, nil
}
