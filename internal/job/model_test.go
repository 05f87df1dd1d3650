package job_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castforge/internal/job"
	"castforge/internal/plan"
	"castforge/internal/support/exception"
)

func newTestJob(t *testing.T, total int) *job.Job {
	t.Helper()
	shape := plan.ShapeFor(total)
	personas := make([]plan.Persona, 0, shape.PersonaCount())
	for i := 0; i < shape.SeriesCount; i++ {
		personas = append(personas, plan.Persona{HostName: "H", GuestName: "G", Kind: plan.KindSeries})
	}
	for i := 0; i < shape.SingleCount; i++ {
		personas = append(personas, plan.Persona{HostName: "H", GuestName: "G", Kind: plan.KindSingle})
	}
	units, err := plan.Build(total, personas)
	require.NoError(t, err)
	return job.New(total, shape, units, "gemini-2.5-flash")
}

func TestJobStartsRunning(t *testing.T) {
	j := newTestJob(t, 3)
	assert.Equal(t, job.StateRunning, j.CurrentState())
	assert.False(t, j.Cancelled())
	assert.NotEmpty(t, j.ID)
}

func TestPauseResumeRoundTrip(t *testing.T) {
	j := newTestJob(t, 3)
	require.NoError(t, j.Pause())
	assert.Equal(t, job.StatePaused, j.CurrentState())
	assert.NotNil(t, j.PausedAt)
	require.NoError(t, j.Resume())
	assert.Equal(t, job.StateRunning, j.CurrentState())
	assert.Nil(t, j.PausedAt)
}

func TestPauseOnPausedFails(t *testing.T) {
	j := newTestJob(t, 3)
	require.NoError(t, j.Pause())
	err := j.Pause()
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrInvalidTransition))
}

func TestResumeOnRunningFails(t *testing.T) {
	j := newTestJob(t, 3)
	err := j.Resume()
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrInvalidTransition))
}

func TestCancelIsTerminal(t *testing.T) {
	j := newTestJob(t, 3)
	require.NoError(t, j.Cancel())
	assert.True(t, j.Cancelled())
	select {
	case <-j.CancelSignal():
	default:
		t.Fatal("cancel signal not closed")
	}

	assert.True(t, errors.Is(j.Resume(), exception.ErrInvalidTransition))
	assert.True(t, errors.Is(j.Pause(), exception.ErrInvalidTransition))
	assert.True(t, errors.Is(j.MarkAsCompleted(), exception.ErrInvalidTransition))
}

func TestCancelFromPaused(t *testing.T) {
	j := newTestJob(t, 3)
	require.NoError(t, j.Pause())
	require.NoError(t, j.Cancel())
	assert.Equal(t, job.StateCancelled, j.CurrentState())
}

func TestResumeRearmsCancelSignal(t *testing.T) {
	j := newTestJob(t, 3)
	before := j.CancelSignal()
	require.NoError(t, j.Pause())
	require.NoError(t, j.Resume())
	after := j.CancelSignal()
	// The signal object is replaced so prior waiters do not leak into
	// the resumed run.
	assert.NotEqual(t, before, after)
}

func TestCompletedIsTerminal(t *testing.T) {
	j := newTestJob(t, 3)
	require.NoError(t, j.MarkAsCompleted())
	assert.True(t, j.CurrentState().IsTerminal())
	assert.True(t, errors.Is(j.Pause(), exception.ErrInvalidTransition))
	assert.True(t, errors.Is(j.Cancel(), exception.ErrInvalidTransition))
}

func TestStatsProgressAndETA(t *testing.T) {
	j := newTestJob(t, 4)
	s := j.Stats()
	assert.Equal(t, 0, s.ArtifactsCompleted)
	assert.Equal(t, 4, s.ArtifactsRemaining)
	assert.Nil(t, s.ETASeconds, "no ETA before the first completion")

	rec := j.AppendArtifact(job.ArtifactRecord{UnitIndex: 2, Kind: plan.KindSingle, Title: "t"})
	assert.Equal(t, 0, rec.Index, "progress index is completion order")

	s = j.Stats()
	assert.Equal(t, 1, s.ArtifactsCompleted)
	assert.Equal(t, 3, s.ArtifactsRemaining)
	require.NotNil(t, s.ETASeconds)
	assert.GreaterOrEqual(t, *s.ETASeconds, 0.0)
}

func TestSnapshotRoundTrip(t *testing.T) {
	j := newTestJob(t, 10)
	j.AppendArtifact(job.ArtifactRecord{UnitIndex: 4, Kind: plan.KindSingle, Title: "a"})
	require.NoError(t, j.Pause())

	snap := j.Snapshot()
	restored := job.FromSnapshot(snap)

	assert.Equal(t, j.ID, restored.ID)
	assert.Equal(t, job.StatePaused, restored.CurrentState())
	assert.Equal(t, j.RequestedTotal, restored.RequestedTotal)
	assert.Len(t, restored.Units, 10)
	assert.Len(t, restored.Artifacts, 1)
	assert.False(t, restored.Cancelled())
}

func TestSnapshotRestoresCancelledClosed(t *testing.T) {
	j := newTestJob(t, 2)
	require.NoError(t, j.Cancel())
	restored := job.FromSnapshot(j.Snapshot())
	assert.True(t, restored.Cancelled())
	select {
	case <-restored.CancelSignal():
	default:
		t.Fatal("restored cancel signal should be closed")
	}
}
