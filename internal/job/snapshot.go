package job

import (
	"time"

	"castforge/internal/plan"
	"castforge/internal/pricing"
)

// Snapshot is the serializable form of a Job written to the persistence
// backend on every mutation. The cost ledger is process-local and is not
// part of the durable record.
type Snapshot struct {
	ID             string                `json:"id"`
	RequestedTotal int                   `json:"requested_total"`
	Shape          plan.Shape            `json:"shape"`
	Units          []plan.GenerationUnit `json:"units"`
	Model          string                `json:"model"`
	State          State                 `json:"state"`
	CreatedAt      time.Time             `json:"created_at"`
	StartedAt      time.Time             `json:"started_at"`
	PausedAt       *time.Time            `json:"paused_at,omitempty"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty"`
	LastUpdated    time.Time             `json:"last_updated"`
	Artifacts      []ArtifactRecord      `json:"artifacts"`
	Failures       []UnitFailure         `json:"failures"`
}

// Snapshot captures the job's current durable state under the lock.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	artifacts := make([]ArtifactRecord, len(j.Artifacts))
	copy(artifacts, j.Artifacts)
	failures := make([]UnitFailure, len(j.Failures))
	copy(failures, j.Failures)
	units := make([]plan.GenerationUnit, len(j.Units))
	copy(units, j.Units)

	return Snapshot{
		ID:             j.ID,
		RequestedTotal: j.RequestedTotal,
		Shape:          j.Shape,
		Units:          units,
		Model:          j.Model,
		State:          j.State,
		CreatedAt:      j.CreatedAt,
		StartedAt:      j.StartedAt,
		PausedAt:       j.PausedAt,
		CompletedAt:    j.CompletedAt,
		LastUpdated:    j.LastUpdated,
		Artifacts:      artifacts,
		Failures:       failures,
	}
}

// FromSnapshot rebuilds a Job from its durable record. Restored jobs are
// inspectable only; execution does not resume across restarts, so the
// cancel channel of an already-cancelled job is restored closed.
func FromSnapshot(s Snapshot) *Job {
	j := &Job{
		ID:             s.ID,
		RequestedTotal: s.RequestedTotal,
		Shape:          s.Shape,
		Units:          s.Units,
		Model:          s.Model,
		State:          s.State,
		CreatedAt:      s.CreatedAt,
		StartedAt:      s.StartedAt,
		PausedAt:       s.PausedAt,
		CompletedAt:    s.CompletedAt,
		LastUpdated:    s.LastUpdated,
		Artifacts:      s.Artifacts,
		Failures:       s.Failures,
		Ledger:         pricing.NewLedger(),
		cancel:         make(chan struct{}),
	}
	if j.Artifacts == nil {
		j.Artifacts = make([]ArtifactRecord, 0)
	}
	if j.Failures == nil {
		j.Failures = make([]UnitFailure, 0)
	}
	if s.State == StateCancelled {
		close(j.cancel)
	}
	return j
}
