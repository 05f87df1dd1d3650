package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castforge/internal/job"
	"castforge/internal/plan"
	"castforge/internal/store/sqlite"
	"castforge/internal/support/exception"
)

func newBackend(t *testing.T) *sqlite.Backend {
	t.Helper()
	b, err := sqlite.New(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func sampleSnapshot(id string) job.Snapshot {
	now := time.Now().UTC().Truncate(time.Second)
	return job.Snapshot{
		ID:             id,
		RequestedTotal: 10,
		Shape:          plan.Shape{SeriesCount: 1, SingleCount: 6},
		Units: []plan.GenerationUnit{
			{Index: 0, Kind: plan.KindSeries, SeriesID: "s-1", Episode: 1, TotalEpisodes: 4,
				Persona: plan.Persona{HostName: "H", GuestName: "G", Kind: plan.KindSeries}},
			{Index: 4, Kind: plan.KindSingle,
				Persona: plan.Persona{HostName: "H2", GuestName: "G2", Kind: plan.KindSingle}},
		},
		Model:       "gemini-2.5-flash",
		State:       job.StateRunning,
		CreatedAt:   now,
		StartedAt:   now,
		LastUpdated: now,
		Artifacts: []job.ArtifactRecord{
			{Index: 0, UnitIndex: 4, Kind: plan.KindSingle, Title: "t", Path: "p.md", CompletedAt: now},
		},
		Failures: []job.UnitFailure{
			{UnitIndex: 0, Kind: plan.KindSeries, Message: "boom", At: now},
		},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	want := sampleSnapshot("job-1")
	require.NoError(t, b.Save(ctx, want))

	got, err := b.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.State, got.State)
	assert.Equal(t, want.Shape, got.Shape)
	require.Len(t, got.Units, 2)
	assert.Equal(t, "s-1", got.Units[0].SeriesID)
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, 4, got.Artifacts[0].UnitIndex)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "boom", got.Failures[0].Message)
}

func TestSaveUpsertsByID(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	snap := sampleSnapshot("job-1")
	require.NoError(t, b.Save(ctx, snap))
	snap.State = job.StateCompleted
	require.NoError(t, b.Save(ctx, snap))

	got, err := b.Load(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.StateCompleted, got.State)

	all, err := b.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLoadUnknownReturnsNotFound(t *testing.T) {
	b := newBackend(t)
	_, err := b.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrNotFound))
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	require.NoError(t, b.Save(ctx, sampleSnapshot("job-1")))
	require.NoError(t, b.Delete(ctx, "job-1"))
	require.NoError(t, b.Delete(ctx, "job-1"))

	all, err := b.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPersistenceSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")

	b1, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, b1.Save(ctx, sampleSnapshot("job-1")))
	require.NoError(t, b1.Close())

	b2, err := sqlite.New(path)
	require.NoError(t, err)
	defer b2.Close()

	all, err := b2.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "job-1", all[0].ID)
}
