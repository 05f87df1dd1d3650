// Package persona generates the participant metadata for a generation
// plan: host/guest name pairs, a location, and a topic niche, each tagged
// for series or single use.
package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"castforge/internal/plan"
	"castforge/internal/support/exception"
	"castforge/internal/support/logger"
	"castforge/internal/upstream"
)

const moduleName = "persona"

// Generator produces persona combinations for a plan shape. The returned
// slice must contain exactly shape.PersonaCount() entries with the exact
// series/single tag split; the planner enforces this strictly. The apiKey
// is the submission's own credential and may be empty.
type Generator interface {
	Generate(ctx context.Context, shape plan.Shape, apiKey string) ([]plan.Persona, error)
}

// UpstreamGenerator asks the generative API for persona metadata in a
// single JSON-mode call.
type UpstreamGenerator struct {
	invoker *upstream.Invoker
	model   string
}

// NewUpstreamGenerator creates a generator backed by the upstream invoker.
func NewUpstreamGenerator(invoker *upstream.Invoker, model string) *UpstreamGenerator {
	return &UpstreamGenerator{invoker: invoker, model: model}
}

// personaWire is the JSON shape requested from the model.
type personaWire struct {
	HostName  string `json:"host_name"`
	GuestName string `json:"guest_name"`
	Location  string `json:"location"`
	Niche     string `json:"niche"`
	Kind      string `json:"kind"`
}

func (g *UpstreamGenerator) Generate(ctx context.Context, shape plan.Shape, apiKey string) ([]plan.Persona, error) {
	prompt := buildPrompt(shape)
	res, err := g.invoker.Invoke(ctx, upstream.Request{
		Prompt:          prompt,
		Model:           g.model,
		MaxOutputTokens: 4096,
		APIKey:          apiKey,
	})
	if err != nil {
		return nil, exception.New(moduleName, "persona metadata call failed", err, false)
	}
	personas, err := parsePersonas(res.Text)
	if err != nil {
		return nil, err
	}
	if err := validate(personas, shape); err != nil {
		return nil, err
	}
	logger.Debugf("Generated %d persona combinations (%d series, %d single).",
		len(personas), shape.SeriesCount, shape.SingleCount)
	return personas, nil
}

var _ Generator = (*UpstreamGenerator)(nil)

func buildPrompt(shape plan.Shape) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d unique podcast persona combinations as a JSON array.\n", shape.PersonaCount())
	b.WriteString("Each element must be an object with keys host_name, guest_name, location, niche, kind.\n")
	fmt.Fprintf(&b, "Exactly %d elements must have kind \"series\" and exactly %d must have kind \"single\".\n",
		shape.SeriesCount, shape.SingleCount)
	b.WriteString("No two elements may share the same host_name/guest_name pair. Respond with only the JSON array, no prose.")
	return b.String()
}

// parsePersonas decodes the model response, tolerating a markdown code
// fence around the JSON array.
func parsePersonas(text string) ([]plan.Persona, error) {
	raw := strings.TrimSpace(text)
	if i := strings.Index(raw, "["); i >= 0 {
		if j := strings.LastIndex(raw, "]"); j > i {
			raw = raw[i : j+1]
		}
	}
	var wire []personaWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, exception.New(moduleName, "persona response is not a JSON array", err, false)
	}
	out := make([]plan.Persona, 0, len(wire))
	for _, w := range wire {
		kind := plan.UnitKind(w.Kind)
		if kind != plan.KindSingle && kind != plan.KindSeries {
			return nil, exception.New(moduleName,
				fmt.Sprintf("persona entry has unknown kind %q", w.Kind), exception.ErrPlanMismatch, false)
		}
		if w.HostName == "" || w.GuestName == "" {
			return nil, exception.New(moduleName,
				"persona entry is missing a participant name", exception.ErrPlanMismatch, false)
		}
		out = append(out, plan.Persona{
			HostName:  w.HostName,
			GuestName: w.GuestName,
			Location:  w.Location,
			Niche:     w.Niche,
			Kind:      kind,
		})
	}
	return out, nil
}

// validate enforces strict count, tag distribution, and pair uniqueness.
func validate(personas []plan.Persona, shape plan.Shape) error {
	if len(personas) != shape.PersonaCount() {
		return exception.New(moduleName,
			fmt.Sprintf("expected %d persona combinations, got %d", shape.PersonaCount(), len(personas)),
			exception.ErrPlanMismatch, false)
	}
	series, single := 0, 0
	seen := make(map[string]struct{}, len(personas))
	for _, p := range personas {
		switch p.Kind {
		case plan.KindSeries:
			series++
		case plan.KindSingle:
			single++
		}
		key := p.HostName + "\x00" + p.GuestName
		if _, dup := seen[key]; dup {
			return exception.New(moduleName,
				fmt.Sprintf("duplicate persona pair %s / %s", p.HostName, p.GuestName),
				exception.ErrPlanMismatch, false)
		}
		seen[key] = struct{}{}
	}
	if series != shape.SeriesCount || single != shape.SingleCount {
		return exception.New(moduleName,
			fmt.Sprintf("persona tag distribution mismatch: got %d series / %d single, want %d / %d",
				series, single, shape.SeriesCount, shape.SingleCount),
			exception.ErrPlanMismatch, false)
	}
	return nil
}
