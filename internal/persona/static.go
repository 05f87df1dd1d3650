package persona

import (
	"context"
	"fmt"

	"castforge/internal/plan"
)

// Deterministic name pools for the offline generator. Combinations cycle
// through the pools, so any shape up to hosts*guests pairs stays unique.
var (
	hostNames = []string{
		"Avery Collins", "Jordan Blake", "Riley Nakamura", "Morgan Reyes",
		"Casey Lindqvist", "Quinn Okafor", "Harper Silva", "Rowan Fitzgerald",
		"Emerson Vance", "Skyler Donovan",
	}
	guestNames = []string{
		"Dr. Lena Moreau", "Sam Whitfield", "Priya Raghavan", "Tomas Keller",
		"Nadia Petrova", "Felix Arroyo", "Ingrid Solberg", "Omar Haddad",
		"Beatrix Lang", "Jun Park",
	}
	locations = []string{
		"Portland, Oregon", "Austin, Texas", "Wellington, New Zealand",
		"Reykjavik, Iceland", "Kyoto, Japan", "Lisbon, Portugal",
		"Montreal, Canada", "Cape Town, South Africa",
	}
	niches = []string{
		"urban beekeeping", "deep-sea robotics", "vintage synthesizers",
		"fermentation science", "alpine trail running", "typeface design",
		"amateur radio astronomy", "restoration carpentry",
	}
)

// StaticGenerator produces deterministic persona combinations without an
// upstream call. Used in tests and offline mode.
type StaticGenerator struct{}

// NewStaticGenerator creates the offline generator.
func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{}
}

func (g *StaticGenerator) Generate(_ context.Context, shape plan.Shape, _ string) ([]plan.Persona, error) {
	out := make([]plan.Persona, 0, shape.PersonaCount())
	for i := 0; i < shape.PersonaCount(); i++ {
		kind := plan.KindSingle
		if i < shape.SeriesCount {
			kind = plan.KindSeries
		}
		host := hostNames[i%len(hostNames)]
		guest := guestNames[(i/len(hostNames))%len(guestNames)]
		// Disambiguate pairs beyond the pool product. Never reached for
		// shapes within the configured artifact cap.
		if i >= len(hostNames)*len(guestNames) {
			guest = fmt.Sprintf("%s #%d", guest, i)
		}
		out = append(out, plan.Persona{
			HostName:  host,
			GuestName: guest,
			Location:  locations[i%len(locations)],
			Niche:     niches[i%len(niches)],
			Kind:      kind,
		})
	}
	return out, nil
}

var _ Generator = (*StaticGenerator)(nil)
