// Package orchestrator drives a generation job to completion: a bounded
// worker pool over the plan's work items, with pause/resume/cancel
// checkpoints, retrying upstream calls, series splitting, cost
// accounting, and a live event stream.
package orchestrator

import (
	"castforge/internal/job"
	"castforge/internal/pricing"
)

// EventType enumerates the live stream event kinds.
type EventType string

const (
	// EventStatus is a free-text milestone message.
	EventStatus EventType = "status"
	// EventProgress reports one completed artifact.
	EventProgress EventType = "progress"
	// EventComplete is the terminal event for a finished or cancelled job.
	EventComplete EventType = "complete"
	// EventError reports a unit-level failure or a fatal job failure.
	EventError EventType = "error"
)

// Progress is the payload of a progress event.
type Progress struct {
	Current  int              `json:"current"`
	Total    int              `json:"total"`
	Filename string           `json:"filename"`
	Context  string           `json:"context,omitempty"`
	Cost     pricing.Snapshot `json:"cost"`
}

// Completion is the payload of the terminal complete event.
type Completion struct {
	ArchivePath string    `json:"archive_path"`
	Stats       job.Stats `json:"stats"`
}

// Failure is the payload of an error event. UnitIndex and SeriesID give
// enough context to correlate unit-level failures with the progress log.
type Failure struct {
	Message   string `json:"message"`
	UnitIndex *int   `json:"unit_index,omitempty"`
	SeriesID  string `json:"series_id,omitempty"`
	Fatal     bool   `json:"fatal"`
}

// Event is one message on a job's live stream.
type Event struct {
	Type       EventType   `json:"type"`
	JobID      string      `json:"job_id"`
	Message    string      `json:"message,omitempty"`
	Progress   *Progress   `json:"progress,omitempty"`
	Completion *Completion `json:"completion,omitempty"`
	Failure    *Failure    `json:"failure,omitempty"`
}
