package orchestrator

import (
	"regexp"
	"strings"
)

// episodeMarker matches the boundary lines the series prompt instructs
// the model to emit between episodes.
var episodeMarker = regexp.MustCompile(`(?mi)^\s*(?:#+\s*)?===\s*EPISODE\s+(\d+)\s*===\s*$`)

// splitEpisodes divides a series response into exactly n episode
// segments. It prefers the explicit episode markers; when fewer than n
// markers are present it falls back to an even line-count split. The
// second return value reports whether the fallback was used.
func splitEpisodes(text string, n int) ([]string, bool) {
	locs := episodeMarker.FindAllStringIndex(text, -1)
	if len(locs) >= n {
		segments := make([]string, 0, n)
		// Content before the first marker is preamble and is dropped.
		for i := 0; i < n; i++ {
			start := locs[i][1]
			end := len(text)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			segments = append(segments, strings.TrimSpace(text[start:end]))
		}
		return segments, false
	}
	return evenLineSplit(text, n), true
}

// evenLineSplit divides the text into n parts of roughly equal line
// count. A best-effort heuristic, not a guarantee of clean boundaries.
func evenLineSplit(text string, n int) []string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	segments := make([]string, 0, n)
	per := len(lines) / n
	if per == 0 {
		per = 1
	}
	for i := 0; i < n; i++ {
		start := i * per
		if start >= len(lines) {
			segments = append(segments, "")
			continue
		}
		end := start + per
		if i == n-1 || end > len(lines) {
			end = len(lines)
		}
		segments = append(segments, strings.TrimSpace(strings.Join(lines[start:end], "\n")))
	}
	return segments
}
