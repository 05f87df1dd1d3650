package pricing

import (
	"sync"
	"time"
)

// Usage is one recorded upstream call.
type Usage struct {
	Model        string    `json:"model"`
	UnitKind     string    `json:"unit_kind"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Snapshot is a point-in-time view of a ledger, safe to hand to event
// consumers.
type Snapshot struct {
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Calls        int       `json:"calls"`
	Cost         Breakdown `json:"cost"`
}

// Ledger is the running token and cost account for one job. It lives only
// for the duration of the in-process job; it is not persisted.
//
// Invariant: the cumulative totals equal the sum of the recorded usages at
// every point in time. Record holds the mutex across both updates so no
// reader can observe them diverging.
type Ledger struct {
	mu           sync.Mutex
	inputTokens  int
	outputTokens int
	usages       []Usage
	cost         Breakdown
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record adds one successful upstream call to the ledger and returns the
// updated snapshot. Safe for concurrent callers.
func (l *Ledger) Record(model, unitKind string, inputTokens, outputTokens int) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.usages = append(l.usages, Usage{
		Model:        model,
		UnitKind:     unitKind,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		RecordedAt:   time.Now(),
	})
	l.inputTokens += inputTokens
	l.outputTokens += outputTokens

	c := Cost(model, inputTokens, outputTokens)
	l.cost.InputCost += c.InputCost
	l.cost.OutputCost += c.OutputCost
	l.cost.Total += c.Total

	return l.snapshotLocked()
}

// Snapshot returns the current totals.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Usages returns a copy of the per-call records.
func (l *Ledger) Usages() []Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Usage, len(l.usages))
	copy(out, l.usages)
	return out
}

func (l *Ledger) snapshotLocked() Snapshot {
	return Snapshot{
		InputTokens:  l.inputTokens,
		OutputTokens: l.outputTokens,
		Calls:        len(l.usages),
		Cost:         l.cost,
	}
}
