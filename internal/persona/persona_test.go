package persona_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castforge/internal/config"
	"castforge/internal/persona"
	"castforge/internal/plan"
	"castforge/internal/support/exception"
	"castforge/internal/upstream"
)

func jsonInvoker(text string) *upstream.Invoker {
	client := &upstream.StubClient{Result: upstream.Result{Text: text, InputTokens: 10, OutputTokens: 100}}
	return upstream.NewInvoker(client, upstream.NewExponentialPolicy(0, time.Millisecond), upstream.NewPacer(0), upstream.NopObserver{})
}

func personaJSON(series, single int) string {
	out := "["
	n := 0
	for i := 0; i < series; i++ {
		if n > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"host_name":"H%d","guest_name":"G%d","location":"L","niche":"N","kind":"series"}`, n, n)
		n++
	}
	for i := 0; i < single; i++ {
		if n > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"host_name":"H%d","guest_name":"G%d","location":"L","niche":"N","kind":"single"}`, n, n)
		n++
	}
	return out + "]"
}

func TestUpstreamGeneratorParsesStrictly(t *testing.T) {
	shape := plan.ShapeFor(10) // 1 series + 6 singles
	g := persona.NewUpstreamGenerator(jsonInvoker(personaJSON(1, 6)), "gemini-2.5-flash")

	personas, err := g.Generate(context.Background(), shape, "k")
	require.NoError(t, err)
	require.Len(t, personas, 7)
	assert.Equal(t, plan.KindSeries, personas[0].Kind)
}

func TestUpstreamGeneratorToleratesCodeFence(t *testing.T) {
	shape := plan.ShapeFor(2)
	fenced := "```json\n" + personaJSON(0, 2) + "\n```"
	g := persona.NewUpstreamGenerator(jsonInvoker(fenced), "gemini-2.5-flash")

	personas, err := g.Generate(context.Background(), shape, "k")
	require.NoError(t, err)
	assert.Len(t, personas, 2)
}

func TestUpstreamGeneratorRejectsWrongCount(t *testing.T) {
	shape := plan.ShapeFor(10)
	g := persona.NewUpstreamGenerator(jsonInvoker(personaJSON(1, 5)), "gemini-2.5-flash")

	_, err := g.Generate(context.Background(), shape, "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrPlanMismatch))
}

func TestUpstreamGeneratorRejectsWrongTagSplit(t *testing.T) {
	shape := plan.ShapeFor(10)
	g := persona.NewUpstreamGenerator(jsonInvoker(personaJSON(2, 5)), "gemini-2.5-flash")

	_, err := g.Generate(context.Background(), shape, "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrPlanMismatch))
}

func TestUpstreamGeneratorRejectsDuplicatePairs(t *testing.T) {
	shape := plan.ShapeFor(2)
	dup := `[{"host_name":"H","guest_name":"G","location":"L","niche":"N","kind":"single"},
		{"host_name":"H","guest_name":"G","location":"L2","niche":"N2","kind":"single"}]`
	g := persona.NewUpstreamGenerator(jsonInvoker(dup), "gemini-2.5-flash")

	_, err := g.Generate(context.Background(), shape, "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrPlanMismatch))
}

func TestUpstreamGeneratorRejectsNonJSON(t *testing.T) {
	shape := plan.ShapeFor(1)
	g := persona.NewUpstreamGenerator(jsonInvoker("sorry, I cannot do that"), "gemini-2.5-flash")
	_, err := g.Generate(context.Background(), shape, "k")
	require.Error(t, err)
}

func TestStaticGeneratorMatchesAnyShape(t *testing.T) {
	g := persona.NewStaticGenerator()
	for _, total := range []int{1, 10, 23, 100} {
		shape := plan.ShapeFor(total)
		personas, err := g.Generate(context.Background(), shape, "k")
		require.NoError(t, err, "total=%d", total)
		require.Len(t, personas, shape.PersonaCount(), "total=%d", total)

		// The output must pass the planner's strict checks.
		units, err := plan.Build(total, personas)
		require.NoError(t, err, "total=%d", total)
		assert.Len(t, units, total, "total=%d", total)
	}
}

func TestStaticGeneratorPairsAreUnique(t *testing.T) {
	g := persona.NewStaticGenerator()
	personas, err := g.Generate(context.Background(), plan.Shape{SeriesCount: 10, SingleCount: 60}, "")
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, p := range personas {
		key := p.HostName + "|" + p.GuestName
		assert.False(t, seen[key], "duplicate pair %s", key)
		seen[key] = true
	}
}

func TestGeneratorSelectionFollowsSubmissionKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg := config.NewConfig()
	client := &upstream.StubClient{Result: upstream.Result{Text: personaJSON(0, 2), InputTokens: 10, OutputTokens: 100}}
	invoker := upstream.NewInvoker(client, upstream.NewExponentialPolicy(0, time.Millisecond), upstream.NewPacer(0), upstream.NopObserver{})
	g := persona.NewGenerator(cfg, invoker)
	shape := plan.ShapeFor(2)

	// Keyless process, keyless submission: offline pool, no upstream call.
	personas, err := g.Generate(context.Background(), shape, "")
	require.NoError(t, err)
	require.Len(t, personas, 2)
	assert.Empty(t, client.Calls())

	// The submission's own key selects the upstream generator and rides
	// along on the call.
	personas, err = g.Generate(context.Background(), shape, "job-key")
	require.NoError(t, err)
	require.Len(t, personas, 2)
	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "job-key", calls[0].APIKey)
}
