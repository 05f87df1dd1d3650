package orchestrator

import (
	"fmt"
	"strings"

	"castforge/internal/plan"
)

// renderTemplate substitutes {{key}} placeholders from the persona.
// Unknown placeholders are left untouched.
func renderTemplate(template string, p plan.Persona) string {
	r := strings.NewReplacer(
		"{{host}}", p.HostName,
		"{{guest}}", p.GuestName,
		"{{location}}", p.Location,
		"{{niche}}", p.Niche,
	)
	return r.Replace(template)
}

// buildSinglePrompt produces the prompt for one standalone transcript.
func buildSinglePrompt(template string, unit plan.GenerationUnit) string {
	var b strings.Builder
	b.WriteString(renderTemplate(template, unit.Persona))
	fmt.Fprintf(&b, "\n\nWrite one complete podcast transcript. Host: %s. Guest: %s. Location: %s. Topic niche: %s.\n",
		unit.Persona.HostName, unit.Persona.GuestName, unit.Persona.Location, unit.Persona.Niche)
	b.WriteString("Begin the transcript with a title line formatted as 'TITLE: <title>'.")
	return b.String()
}

// buildSeriesPrompt produces the single prompt covering every episode of
// a series. The response must contain one marker line per episode so the
// splitter can separate them.
func buildSeriesPrompt(template string, units []plan.GenerationUnit) string {
	lead := units[0]
	var b strings.Builder
	b.WriteString(renderTemplate(template, lead.Persona))
	fmt.Fprintf(&b, "\n\nWrite a %d-episode podcast series in a single response. Host: %s. Guest: %s. Location: %s. Topic niche: %s.\n",
		len(units), lead.Persona.HostName, lead.Persona.GuestName, lead.Persona.Location, lead.Persona.Niche)
	fmt.Fprintf(&b, "Before each episode output a marker line of exactly '=== EPISODE <n> ===' for n = 1..%d.\n", len(units))
	b.WriteString("Immediately after each marker, start that episode with a title line formatted as 'TITLE: <title>'. Episodes must be self-contained but form a continuing arc.")
	return b.String()
}

// extractTitle pulls the 'TITLE:' line out of a transcript, returning the
// title and the remaining content. Falls back to a persona-derived title
// when the model omitted the line.
func extractTitle(text string, unit plan.GenerationUnit) (string, string) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#*"))
		if rest, ok := cutPrefixFold(trimmed, "TITLE:"); ok {
			title := strings.TrimSpace(rest)
			remainder := strings.Join(append(append([]string{}, lines[:i]...), lines[i+1:]...), "\n")
			if title != "" {
				return title, strings.TrimSpace(remainder)
			}
		}
	}
	title := fmt.Sprintf("%s with %s", unit.Persona.Niche, unit.Persona.GuestName)
	if unit.Kind == plan.KindSeries {
		title = fmt.Sprintf("%s (episode %d)", title, unit.Episode)
	}
	return title, strings.TrimSpace(text)
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
