package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"castforge/internal/support/exception"
	"castforge/internal/support/logger"
)

const moduleName = "job"

// Persistence is the durable backend behind the Store. Implementations
// live under internal/store.
type Persistence interface {
	// Save durably writes a job snapshot keyed by job ID, replacing any
	// previous record.
	Save(ctx context.Context, snap Snapshot) error
	// Load reads one snapshot, or exception.ErrNotFound.
	Load(ctx context.Context, jobID string) (Snapshot, error)
	// LoadAll reads every persisted snapshot.
	LoadAll(ctx context.Context) ([]Snapshot, error)
	// Delete removes a snapshot. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, jobID string) error
	// Close releases backend resources.
	Close() error
}

// Store is the single authoritative registry of jobs. It keeps live jobs
// in memory and mirrors every mutation to the persistence backend so a
// restarted process can inspect in-flight job metadata.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	backend Persistence
}

// NewStore creates a store over the given backend.
func NewStore(backend Persistence) *Store {
	return &Store{
		jobs:    make(map[string]*Job),
		backend: backend,
	}
}

// Create registers a new job and writes its initial snapshot.
func (s *Store) Create(ctx context.Context, j *Job) error {
	s.mu.Lock()
	if _, ok := s.jobs[j.ID]; ok {
		s.mu.Unlock()
		return exception.New(moduleName,
			fmt.Sprintf("job %s already registered", j.ID), exception.ErrValidation, false)
	}
	s.jobs[j.ID] = j
	s.mu.Unlock()

	if err := s.persist(ctx, j); err != nil {
		return err
	}
	logger.Infof("Job %s registered (%d singles, %d series).", j.ID, j.Shape.SingleCount, j.Shape.SeriesCount)
	return nil
}

// Get returns a registered job or exception.ErrNotFound.
func (s *Store) Get(jobID string) (*Job, error) {
	s.mu.RLock()
	j, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, exception.New(moduleName,
			fmt.Sprintf("job %s not found", jobID), exception.ErrNotFound, false)
	}
	return j, nil
}

// Pause pauses a running job and returns the resulting stats snapshot.
func (s *Store) Pause(ctx context.Context, jobID string) (Stats, error) {
	return s.mutate(ctx, jobID, (*Job).Pause)
}

// Resume resumes a paused job.
func (s *Store) Resume(ctx context.Context, jobID string) (Stats, error) {
	return s.mutate(ctx, jobID, (*Job).Resume)
}

// Cancel terminally cancels a job.
func (s *Store) Cancel(ctx context.Context, jobID string) (Stats, error) {
	return s.mutate(ctx, jobID, (*Job).Cancel)
}

// Complete marks a job completed.
func (s *Store) Complete(ctx context.Context, jobID string) (Stats, error) {
	return s.mutate(ctx, jobID, (*Job).MarkAsCompleted)
}

func (s *Store) mutate(ctx context.Context, jobID string, op func(*Job) error) (Stats, error) {
	j, err := s.Get(jobID)
	if err != nil {
		return Stats{}, err
	}
	if err := op(j); err != nil {
		return j.Stats(), err
	}
	if err := s.persist(ctx, j); err != nil {
		return j.Stats(), err
	}
	return j.Stats(), nil
}

// RecordArtifact appends a finished artifact to the job's progress log and
// persists the new state. It returns the record with its assigned
// completion-order index.
func (s *Store) RecordArtifact(ctx context.Context, jobID string, rec ArtifactRecord) (ArtifactRecord, error) {
	j, err := s.Get(jobID)
	if err != nil {
		return ArtifactRecord{}, err
	}
	rec = j.AppendArtifact(rec)
	if err := s.persist(ctx, j); err != nil {
		return rec, err
	}
	return rec, nil
}

// RecordFailure appends a permanently failed unit and persists.
func (s *Store) RecordFailure(ctx context.Context, jobID string, failure UnitFailure, cause error) error {
	j, err := s.Get(jobID)
	if err != nil {
		return err
	}
	if failure.Message == "" && cause != nil {
		failure.Message = exception.ExtractMessage(cause)
	}
	j.mu.Lock()
	failure.At = time.Now()
	j.Failures = append(j.Failures, failure)
	j.LastUpdated = failure.At
	j.mu.Unlock()
	logger.Warnf("Job %s: unit %d (%s) failed permanently: %s", jobID, failure.UnitIndex, failure.Kind, failure.Message)
	return s.persist(ctx, j)
}

// Stats returns the current stats snapshot for a job.
func (s *Store) Stats(jobID string) (Stats, error) {
	j, err := s.Get(jobID)
	if err != nil {
		return Stats{}, err
	}
	return j.Stats(), nil
}

// Cleanup removes the job from memory and deletes its durable record.
// It succeeds regardless of job state; a still-live job is cancelled
// first so its workers stop instead of spending upstream calls against
// a deleted record.
func (s *Store) Cleanup(ctx context.Context, jobID string) error {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	delete(s.jobs, jobID)
	s.mu.Unlock()
	if ok && !j.CurrentState().IsTerminal() {
		logger.Warnf("Job %s: cleanup requested while %s; cancelling.", jobID, j.CurrentState())
		if err := j.Cancel(); err != nil {
			logger.Debugf("Job %s: cancel during cleanup: %v", jobID, err)
		}
	}
	if err := s.backend.Delete(ctx, jobID); err != nil {
		return exception.New(moduleName,
			fmt.Sprintf("failed to delete persisted state for job %s", jobID), err, false)
	}
	logger.Infof("Job %s cleaned up.", jobID)
	return nil
}

// Recover loads all persisted snapshots into memory so their metadata is
// queryable after a restart. Execution of interrupted jobs is not
// resumed.
func (s *Store) Recover(ctx context.Context) (int, error) {
	snaps, err := s.backend.LoadAll(ctx)
	if err != nil {
		return 0, exception.New(moduleName, "failed to load persisted jobs", err, false)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recovered := 0
	for _, snap := range snaps {
		if _, ok := s.jobs[snap.ID]; ok {
			continue
		}
		s.jobs[snap.ID] = FromSnapshot(snap)
		recovered++
	}
	if recovered > 0 {
		logger.Infof("Recovered %d persisted job(s) for inspection.", recovered)
	}
	return recovered, nil
}

func (s *Store) persist(ctx context.Context, j *Job) error {
	if err := s.backend.Save(ctx, j.Snapshot()); err != nil {
		return exception.New(moduleName,
			fmt.Sprintf("failed to persist job %s", j.ID), err, false)
	}
	return nil
}
