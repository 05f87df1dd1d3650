// Package memory provides an in-memory implementation of the job
// persistence backend. It keeps snapshots in a map, suitable for tests
// and for running without a database file.
package memory

import (
	"context"
	"fmt"
	"sync"

	"castforge/internal/job"
	"castforge/internal/support/exception"
)

// Backend is an in-memory implementation of job.Persistence.
type Backend struct {
	mu    sync.RWMutex // Mutex to protect concurrent access to the map.
	snaps map[string]job.Snapshot
}

// New creates and initializes a new in-memory backend.
func New() *Backend {
	return &Backend{snaps: make(map[string]job.Snapshot)}
}

func (b *Backend) Save(_ context.Context, snap job.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps[snap.ID] = snap
	return nil
}

func (b *Backend) Load(_ context.Context, jobID string) (job.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap, ok := b.snaps[jobID]
	if !ok {
		return job.Snapshot{}, exception.New("store",
			fmt.Sprintf("no persisted state for job %s", jobID), exception.ErrNotFound, false)
	}
	return snap, nil
}

func (b *Backend) LoadAll(_ context.Context) ([]job.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]job.Snapshot, 0, len(b.snaps))
	for _, snap := range b.snaps {
		out = append(out, snap)
	}
	return out, nil
}

func (b *Backend) Delete(_ context.Context, jobID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.snaps, jobID)
	return nil
}

// Close releases resources used by the backend. As an in-memory backend it
// holds no external resources, so this method always returns nil.
func (b *Backend) Close() error {
	return nil
}

var _ job.Persistence = (*Backend)(nil)
