// Package job holds the generation job domain model: the state machine,
// progress records, and runtime statistics.
package job

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"castforge/internal/plan"
	"castforge/internal/pricing"
	"castforge/internal/support/exception"
)

// State represents the lifecycle state of a generation job.
type State string

const (
	StateRunning   State = "RUNNING"
	StatePaused    State = "PAUSED"
	StateCancelled State = "CANCELLED"
	StateCompleted State = "COMPLETED"
)

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateCancelled || s == StateCompleted
}

// isValidTransition checks if the state transition for a Job is valid.
func isValidTransition(current, next State) bool {
	switch current {
	case StateRunning:
		// RUNNING can pause, cancel, or finish.
		return next == StatePaused || next == StateCancelled || next == StateCompleted
	case StatePaused:
		// PAUSED can resume or cancel. A paused job never completes directly.
		return next == StateRunning || next == StateCancelled
	case StateCancelled, StateCompleted:
		return false
	default:
		return false
	}
}

// NewID generates a new unique job ID.
func NewID() string {
	return uuid.New().String()
}

// ArtifactRecord describes one finished output artifact. Index is assigned
// in completion order, not plan order.
type ArtifactRecord struct {
	Index        int           `json:"index"`
	UnitIndex    int           `json:"unit_index"`
	Kind         plan.UnitKind `json:"kind"`
	Title        string        `json:"title"`
	SeriesID     string        `json:"series_id,omitempty"`
	Episode      int           `json:"episode,omitempty"`
	Path         string        `json:"path"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Cost         float64       `json:"cost"`
	CompletedAt  time.Time     `json:"completed_at"`
}

// UnitFailure records a generation unit that exhausted its retries. The job
// keeps going; failures are reported in the final stats.
type UnitFailure struct {
	UnitIndex int           `json:"unit_index"`
	Kind      plan.UnitKind `json:"kind"`
	Message   string        `json:"message"`
	At        time.Time     `json:"at"`
}

// Stats is a point-in-time view of job progress for API consumers.
type Stats struct {
	JobID              string           `json:"job_id"`
	State              State            `json:"state"`
	RequestedTotal     int              `json:"requested_total"`
	ArtifactsCompleted int              `json:"artifacts_completed"`
	UnitsFailed        int              `json:"units_failed"`
	ArtifactsRemaining int              `json:"artifacts_remaining"`
	ElapsedSeconds     float64          `json:"elapsed_seconds"`
	ETASeconds         *float64         `json:"eta_seconds,omitempty"`
	Cost               pricing.Snapshot `json:"cost"`
}

// Job is a single generation run. All mutation goes through the methods
// below, which hold the job's own lock; the Store adds persistence on top.
type Job struct {
	mu sync.Mutex

	ID             string
	RequestedTotal int
	Shape          plan.Shape
	Units          []plan.GenerationUnit
	Model          string

	State       State
	CreatedAt   time.Time
	StartedAt   time.Time
	PausedAt    *time.Time
	CompletedAt *time.Time
	LastUpdated time.Time

	Artifacts []ArtifactRecord
	Failures  []UnitFailure
	Ledger    *pricing.Ledger

	// cancel is closed exactly once when the job is cancelled. Workers
	// select on it to stop promptly instead of polling state.
	cancel chan struct{}
}

// New creates a running job for the given plan.
func New(requestedTotal int, shape plan.Shape, units []plan.GenerationUnit, model string) *Job {
	now := time.Now()
	return &Job{
		ID:             NewID(),
		RequestedTotal: requestedTotal,
		Shape:          shape,
		Units:          units,
		Model:          model,
		State:          StateRunning,
		CreatedAt:      now,
		StartedAt:      now,
		LastUpdated:    now,
		Artifacts:      make([]ArtifactRecord, 0, shape.ArtifactCount()),
		Failures:       make([]UnitFailure, 0),
		Ledger:         pricing.NewLedger(),
		cancel:         make(chan struct{}),
	}
}

// transitionTo moves the job to newState, or fails with ErrInvalidTransition.
// Callers hold j.mu.
func (j *Job) transitionTo(newState State) error {
	if !isValidTransition(j.State, newState) {
		return exception.New("job",
			fmt.Sprintf("job %s: invalid state transition: %s -> %s", j.ID, j.State, newState),
			exception.ErrInvalidTransition, false)
	}
	j.State = newState
	j.LastUpdated = time.Now()
	return nil
}

// Pause moves a running job to PAUSED. In-flight units finish; no new
// unit starts until Resume.
func (j *Job) Pause() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionTo(StatePaused); err != nil {
		return err
	}
	now := time.Now()
	j.PausedAt = &now
	return nil
}

// Resume moves a paused job back to RUNNING and re-arms the cancellation
// signal so a future cancel is independent of any prior signal.
func (j *Job) Resume() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionTo(StateRunning); err != nil {
		return err
	}
	j.PausedAt = nil
	j.cancel = make(chan struct{})
	return nil
}

// Cancel terminally stops the job and signals all workers. Completed
// artifacts are kept; queued units never start.
func (j *Job) Cancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionTo(StateCancelled); err != nil {
		return err
	}
	now := time.Now()
	j.CompletedAt = &now
	close(j.cancel)
	return nil
}

// MarkAsCompleted finishes the job. A job with failed units still
// completes; only cancellation prevents completion.
func (j *Job) MarkAsCompleted() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionTo(StateCompleted); err != nil {
		return err
	}
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

// CancelSignal returns the channel closed on cancellation. Workers must
// re-fetch it at each checkpoint; Resume replaces the channel.
func (j *Job) CancelSignal() <-chan struct{} {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancel
}

// Cancelled reports whether the job has been cancelled.
func (j *Job) Cancelled() bool {
	return j.CurrentState() == StateCancelled
}

// CurrentState returns the state under the lock.
func (j *Job) CurrentState() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.State
}

// AppendArtifact records a finished artifact and assigns its
// completion-order index.
func (j *Job) AppendArtifact(rec ArtifactRecord) ArtifactRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec.Index = len(j.Artifacts)
	rec.CompletedAt = time.Now()
	j.Artifacts = append(j.Artifacts, rec)
	j.LastUpdated = rec.CompletedAt
	return rec
}

// Stats builds a progress snapshot. The ETA is a linear extrapolation
// from completed artifacts and is omitted until at least one artifact
// has finished or once the job is terminal.
func (j *Job) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()

	completed := len(j.Artifacts)
	failed := len(j.Failures)
	remaining := j.Shape.ArtifactCount() - completed - failedArtifacts(j.Failures)
	if remaining < 0 {
		remaining = 0
	}

	end := time.Now()
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	elapsed := end.Sub(j.StartedAt)

	s := Stats{
		JobID:              j.ID,
		State:              j.State,
		RequestedTotal:     j.RequestedTotal,
		ArtifactsCompleted: completed,
		UnitsFailed:        failed,
		ArtifactsRemaining: remaining,
		ElapsedSeconds:     elapsed.Seconds(),
		Cost:               j.Ledger.Snapshot(),
	}
	if completed > 0 && remaining > 0 && !j.State.IsTerminal() {
		eta := elapsed.Seconds() / float64(completed) * float64(remaining)
		s.ETASeconds = &eta
	}
	return s
}

// failedArtifacts counts artifacts lost to failed units. A failed series
// unit loses one episode artifact, same as a failed single.
func failedArtifacts(failures []UnitFailure) int {
	return len(failures)
}
