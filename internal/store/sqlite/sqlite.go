// Package sqlite provides the durable job persistence backend, a GORM
// connection over a SQLite database file.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"castforge/internal/job"
	"castforge/internal/support/exception"
	"castforge/internal/support/logger"
)

const moduleName = "store"

// jobRecord is the GORM entity for one persisted job. The structured parts
// of the snapshot (plan units, artifact log, failures) are stored as JSON
// columns; the store is a key-value record keyed by job ID, not a
// relational model.
type jobRecord struct {
	ID             string `gorm:"primaryKey;size:36"`
	RequestedTotal int
	Model          string
	State          string `gorm:"index"`
	CreatedAt      time.Time
	StartedAt      time.Time
	PausedAt       *time.Time
	CompletedAt    *time.Time
	LastUpdated    time.Time
	ShapeJSON      string `gorm:"column:shape_json"`
	UnitsJSON      string `gorm:"column:units_json"`
	ArtifactsJSON  string `gorm:"column:artifacts_json"`
	FailuresJSON   string `gorm:"column:failures_json"`
}

func (jobRecord) TableName() string { return "jobs" }

// Backend implements job.Persistence over SQLite.
type Backend struct {
	db *gorm.DB
}

// New opens (or creates) the database file and migrates the schema.
func New(path string) (*Backend, error) {
	if path == "" {
		return nil, exception.Newf(moduleName, "sqlite database path cannot be empty")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, exception.New(moduleName,
			fmt.Sprintf("failed to open sqlite database at %s", path), err, false)
	}
	if err := db.AutoMigrate(&jobRecord{}); err != nil {
		return nil, exception.New(moduleName, "failed to migrate jobs table", err, false)
	}
	logger.Infof("Job store opened at %s.", path)
	return &Backend{db: db}, nil
}

func (b *Backend) Save(ctx context.Context, snap job.Snapshot) error {
	rec, err := toRecord(snap)
	if err != nil {
		return err
	}
	// Save upserts by primary key, which matches replace-on-every-mutation
	// semantics.
	if err := b.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return exception.New(moduleName,
			fmt.Sprintf("failed to save job %s", snap.ID), err, false)
	}
	return nil
}

func (b *Backend) Load(ctx context.Context, jobID string) (job.Snapshot, error) {
	var rec jobRecord
	err := b.db.WithContext(ctx).First(&rec, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return job.Snapshot{}, exception.New(moduleName,
			fmt.Sprintf("no persisted state for job %s", jobID), exception.ErrNotFound, false)
	}
	if err != nil {
		return job.Snapshot{}, exception.New(moduleName,
			fmt.Sprintf("failed to load job %s", jobID), err, false)
	}
	return fromRecord(rec)
}

func (b *Backend) LoadAll(ctx context.Context) ([]job.Snapshot, error) {
	var recs []jobRecord
	if err := b.db.WithContext(ctx).Order("created_at").Find(&recs).Error; err != nil {
		return nil, exception.New(moduleName, "failed to load persisted jobs", err, false)
	}
	out := make([]job.Snapshot, 0, len(recs))
	for _, rec := range recs {
		snap, err := fromRecord(rec)
		if err != nil {
			// A corrupt row should not block recovery of the others.
			logger.Errorf("Skipping unreadable job record %s: %v", rec.ID, err)
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

func (b *Backend) Delete(ctx context.Context, jobID string) error {
	if err := b.db.WithContext(ctx).Delete(&jobRecord{}, "id = ?", jobID).Error; err != nil {
		return exception.New(moduleName,
			fmt.Sprintf("failed to delete job %s", jobID), err, false)
	}
	return nil
}

func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ job.Persistence = (*Backend)(nil)

func toRecord(snap job.Snapshot) (jobRecord, error) {
	shape, err := json.Marshal(snap.Shape)
	if err != nil {
		return jobRecord{}, exception.New(moduleName, "failed to encode job shape", err, false)
	}
	units, err := json.Marshal(snap.Units)
	if err != nil {
		return jobRecord{}, exception.New(moduleName, "failed to encode plan units", err, false)
	}
	artifacts, err := json.Marshal(snap.Artifacts)
	if err != nil {
		return jobRecord{}, exception.New(moduleName, "failed to encode artifact log", err, false)
	}
	failures, err := json.Marshal(snap.Failures)
	if err != nil {
		return jobRecord{}, exception.New(moduleName, "failed to encode failure log", err, false)
	}
	return jobRecord{
		ID:             snap.ID,
		RequestedTotal: snap.RequestedTotal,
		Model:          snap.Model,
		State:          string(snap.State),
		CreatedAt:      snap.CreatedAt,
		StartedAt:      snap.StartedAt,
		PausedAt:       snap.PausedAt,
		CompletedAt:    snap.CompletedAt,
		LastUpdated:    snap.LastUpdated,
		ShapeJSON:      string(shape),
		UnitsJSON:      string(units),
		ArtifactsJSON:  string(artifacts),
		FailuresJSON:   string(failures),
	}, nil
}

func fromRecord(rec jobRecord) (job.Snapshot, error) {
	snap := job.Snapshot{
		ID:             rec.ID,
		RequestedTotal: rec.RequestedTotal,
		Model:          rec.Model,
		State:          job.State(rec.State),
		CreatedAt:      rec.CreatedAt,
		StartedAt:      rec.StartedAt,
		PausedAt:       rec.PausedAt,
		CompletedAt:    rec.CompletedAt,
		LastUpdated:    rec.LastUpdated,
	}
	if err := json.Unmarshal([]byte(rec.ShapeJSON), &snap.Shape); err != nil {
		return job.Snapshot{}, exception.New(moduleName, "failed to decode job shape", err, false)
	}
	if err := json.Unmarshal([]byte(rec.UnitsJSON), &snap.Units); err != nil {
		return job.Snapshot{}, exception.New(moduleName, "failed to decode plan units", err, false)
	}
	if err := json.Unmarshal([]byte(rec.ArtifactsJSON), &snap.Artifacts); err != nil {
		return job.Snapshot{}, exception.New(moduleName, "failed to decode artifact log", err, false)
	}
	if err := json.Unmarshal([]byte(rec.FailuresJSON), &snap.Failures); err != nil {
		return job.Snapshot{}, exception.New(moduleName, "failed to decode failure log", err, false)
	}
	return snap, nil
}
