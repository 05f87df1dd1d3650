package archive_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castforge/internal/archive"
	"castforge/internal/plan"
	"castforge/internal/storage"
)

func newWriter(t *testing.T) *archive.Writer {
	t.Helper()
	conn, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	return archive.NewWriter(conn, "artifacts")
}

func sampleUnit(index int) plan.GenerationUnit {
	return plan.GenerationUnit{
		Index: index,
		Kind:  plan.KindSingle,
		Persona: plan.Persona{
			HostName:  "Avery Collins",
			GuestName: "Dr. Lena Moreau",
			Location:  "Portland, Oregon",
			Niche:     "urban beekeeping",
			Kind:      plan.KindSingle,
		},
	}
}

func TestWriteTranscriptEmbedsUnitMetadata(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()

	name, err := w.WriteTranscript(ctx, "job-1", sampleUnit(3), "The Hive Mind!", "Host: hello.")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "job-1/unit_003_"))
	assert.True(t, strings.HasSuffix(name, ".md"))
	assert.NotContains(t, name, "!")

	data, err := w.BuildZip(ctx, "job-1")
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()

	content := string(body)
	assert.Contains(t, content, "# The Hive Mind!")
	assert.Contains(t, content, "Host: Avery Collins")
	assert.Contains(t, content, "Unit: 3")
	assert.Contains(t, content, "Host: hello.")
}

func TestWriteTranscriptSeriesNaming(t *testing.T) {
	w := newWriter(t)
	unit := sampleUnit(5)
	unit.Kind = plan.KindSeries
	unit.SeriesID = "series-1"
	unit.Episode = 2
	unit.TotalEpisodes = 4

	name, err := w.WriteTranscript(context.Background(), "job-1", unit, "Second Episode", "body")
	require.NoError(t, err)
	assert.Contains(t, name, "unit_005_ep2_")
}

func TestBuildZipEmptyJob(t *testing.T) {
	w := newWriter(t)
	data, err := w.BuildZip(context.Background(), "nothing-here")
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Empty(t, zr.File)
}

func TestBuildZipOnlyIncludesOwnJob(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()
	_, err := w.WriteTranscript(ctx, "job-a", sampleUnit(0), "A", "a")
	require.NoError(t, err)
	_, err = w.WriteTranscript(ctx, "job-b", sampleUnit(0), "B", "b")
	require.NoError(t, err)

	data, err := w.BuildZip(ctx, "job-a")
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
}

func TestPurgeRemovesArtifacts(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()
	_, err := w.WriteTranscript(ctx, "job-1", sampleUnit(0), "A", "a")
	require.NoError(t, err)
	_, err = w.WriteTranscript(ctx, "job-1", sampleUnit(1), "B", "b")
	require.NoError(t, err)

	require.NoError(t, w.Purge(ctx, "job-1"))

	data, err := w.BuildZip(ctx, "job-1")
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Empty(t, zr.File)
}
