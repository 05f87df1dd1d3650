// Package archive writes transcript artifacts through the storage
// connection and packages a job's output into a downloadable ZIP.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"castforge/internal/plan"
	"castforge/internal/storage"
	"castforge/internal/support/exception"
	"castforge/internal/support/logger"
)

const moduleName = "archive"

// Writer persists artifacts under a per-job prefix.
type Writer struct {
	conn   storage.Connection
	bucket string
}

// NewWriter creates an artifact writer over the storage connection.
func NewWriter(conn storage.Connection, bucket storage.Bucket) *Writer {
	return &Writer{conn: conn, bucket: string(bucket)}
}

// WriteTranscript stores one transcript as a markdown object and returns
// its object name. The name embeds the unit index so concurrent
// completions never collide, plus a slug of the title for humans.
func (w *Writer) WriteTranscript(ctx context.Context, jobID string, unit plan.GenerationUnit, title, content string) (string, error) {
	name := objectName(jobID, unit, title)
	body := renderMarkdown(unit, title, content)
	if err := w.conn.Upload(ctx, w.bucket, name, strings.NewReader(body), "text/markdown"); err != nil {
		return "", exception.New(moduleName,
			fmt.Sprintf("failed to store transcript %s", name), err, false)
	}
	return name, nil
}

// BuildZip packages every artifact written so far for the job into a ZIP
// and returns its bytes. Works for finished and cancelled jobs alike;
// a job with no artifacts yields an empty archive.
func (w *Writer) BuildZip(ctx context.Context, jobID string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	prefix := jobID + "/"

	err := w.conn.ListObjects(ctx, w.bucket, prefix, func(objName string) error {
		r, err := w.conn.Download(ctx, w.bucket, objName)
		if err != nil {
			return err
		}
		defer r.Close()
		entry, err := zw.Create(path.Base(objName))
		if err != nil {
			return err
		}
		_, err = io.Copy(entry, r)
		return err
	})
	if err != nil {
		zw.Close()
		return nil, exception.New(moduleName,
			fmt.Sprintf("failed to package artifacts for job %s", jobID), err, false)
	}
	if err := zw.Close(); err != nil {
		return nil, exception.New(moduleName, "failed to finalize archive", err, false)
	}
	return buf.Bytes(), nil
}

// Purge deletes every stored artifact for the job. Used when a job-level
// failure aborts a run with partial output on disk.
func (w *Writer) Purge(ctx context.Context, jobID string) error {
	prefix := jobID + "/"
	var names []string
	if err := w.conn.ListObjects(ctx, w.bucket, prefix, func(objName string) error {
		names = append(names, objName)
		return nil
	}); err != nil {
		return err
	}
	for _, name := range names {
		if err := w.conn.DeleteObject(ctx, w.bucket, name); err != nil {
			return err
		}
	}
	if len(names) > 0 {
		logger.Infof("Purged %d partial artifact(s) for job %s.", len(names), jobID)
	}
	return nil
}

func objectName(jobID string, unit plan.GenerationUnit, title string) string {
	slug := sanitize(title)
	if slug == "" {
		slug = string(unit.Kind)
	}
	if unit.Kind == plan.KindSeries {
		return fmt.Sprintf("%s/unit_%03d_ep%d_%s.md", jobID, unit.Index, unit.Episode, slug)
	}
	return fmt.Sprintf("%s/unit_%03d_%s.md", jobID, unit.Index, slug)
}

// sanitize reduces a free-text title to a safe lowercase file slug.
func sanitize(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

func renderMarkdown(unit plan.GenerationUnit, title, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Host: %s\n- Guest: %s\n- Location: %s\n- Niche: %s\n",
		unit.Persona.HostName, unit.Persona.GuestName, unit.Persona.Location, unit.Persona.Niche)
	if unit.Kind == plan.KindSeries {
		fmt.Fprintf(&b, "- Series: %s (episode %d of %d)\n", unit.SeriesID, unit.Episode, unit.TotalEpisodes)
	}
	fmt.Fprintf(&b, "- Unit: %d\n\n---\n\n", unit.Index)
	b.WriteString(strings.TrimSpace(content))
	b.WriteString("\n")
	return b.String()
}
