// Package plan partitions a requested artifact total into generation units.
// A plan is built once when a job is accepted and is immutable afterwards.
package plan

import (
	"fmt"

	"github.com/google/uuid"

	"castforge/internal/support/exception"
)

const moduleName = "plan"

// UnitKind distinguishes standalone transcripts from series episodes.
type UnitKind string

const (
	KindSingle UnitKind = "single"
	KindSeries UnitKind = "series"
)

// EpisodesPerSeries is the fixed episode count of one series.
const EpisodesPerSeries = 4

// Persona is one participant combination produced by the metadata
// collaborator: two speakers, a location and a topical niche, tagged with
// the unit kind it should expand to.
type Persona struct {
	HostName  string   `json:"host_name"`
	GuestName string   `json:"guest_name"`
	Location  string   `json:"location"`
	Niche     string   `json:"niche"`
	Kind      UnitKind `json:"kind"`
}

// GenerationUnit is one atomic piece of work submitted upstream.
// Index is unique within a job, 0-based, and defines the logical output
// ordering. Series units carry a shared SeriesID and an Episode in 1..4.
type GenerationUnit struct {
	Index         int      `json:"index"`
	Kind          UnitKind `json:"kind"`
	Persona       Persona  `json:"persona"`
	SeriesID      string   `json:"series_id,omitempty"`
	Episode       int      `json:"episode,omitempty"`
	TotalEpisodes int      `json:"total_episodes,omitempty"`
}

// Shape describes the unit structure a total implies.
//
// Convention: the requested total counts output artifacts. Every block of
// ten requested artifacts funds one 4-episode series; the remainder of the
// total is filled with singles, so the expanded artifact count always equals
// the total exactly.
type Shape struct {
	SeriesCount int
	SingleCount int
}

// ShapeFor computes the plan shape for a requested artifact total.
func ShapeFor(total int) Shape {
	seriesCount := total / 10
	return Shape{
		SeriesCount: seriesCount,
		SingleCount: total - seriesCount*EpisodesPerSeries,
	}
}

// PersonaCount returns how many persona combinations the collaborator must
// produce for this shape: one per series plus one per single.
func (s Shape) PersonaCount() int {
	return s.SeriesCount + s.SingleCount
}

// ArtifactCount returns the expanded artifact count of this shape.
func (s Shape) ArtifactCount() int {
	return s.SeriesCount*EpisodesPerSeries + s.SingleCount
}

// Build expands persona combinations into the ordered unit sequence for a
// job requesting `total` artifacts.
//
// It fails with exception.ErrPlanMismatch unless the personas match the
// shape exactly: PersonaCount() combinations overall, with exactly
// SeriesCount of them tagged series and SingleCount tagged single. This is
// strict equality, not best effort: a collaborator drifting from the
// requested structure aborts the job before any artifact work begins.
//
// Output order follows the input persona order, with a series' episodes
// emitted consecutively in episode order.
func Build(total int, personas []Persona) ([]GenerationUnit, error) {
	if total < 1 {
		return nil, exception.New(moduleName,
			fmt.Sprintf("artifact total must be at least 1, got %d", total),
			exception.ErrValidation, false)
	}
	shape := ShapeFor(total)
	if shape.ArtifactCount() != total {
		// Unreachable under the shape arithmetic; guard rather than absorb.
		return nil, exception.Newf(moduleName, "plan shape for total %d expands to %d artifacts", total, shape.ArtifactCount())
	}

	if len(personas) != shape.PersonaCount() {
		return nil, exception.New(moduleName,
			"persona collaborator returned wrong combination count",
			exception.ErrPlanMismatch, false)
	}
	seriesTagged, singleTagged := 0, 0
	for _, p := range personas {
		switch p.Kind {
		case KindSeries:
			seriesTagged++
		case KindSingle:
			singleTagged++
		default:
			return nil, exception.New(moduleName,
				"persona combination carries unknown kind tag "+string(p.Kind),
				exception.ErrPlanMismatch, false)
		}
	}
	if seriesTagged != shape.SeriesCount || singleTagged != shape.SingleCount {
		return nil, exception.New(moduleName,
			"persona tag distribution does not match requested plan structure",
			exception.ErrPlanMismatch, false)
	}

	units := make([]GenerationUnit, 0, total)
	index := 0
	for _, p := range personas {
		switch p.Kind {
		case KindSeries:
			seriesID := uuid.New().String()
			for ep := 1; ep <= EpisodesPerSeries; ep++ {
				units = append(units, GenerationUnit{
					Index:         index,
					Kind:          KindSeries,
					Persona:       p,
					SeriesID:      seriesID,
					Episode:       ep,
					TotalEpisodes: EpisodesPerSeries,
				})
				index++
			}
		case KindSingle:
			units = append(units, GenerationUnit{
				Index:   index,
				Kind:    KindSingle,
				Persona: p,
			})
			index++
		}
	}
	return units, nil
}
