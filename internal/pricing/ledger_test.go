package pricing_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castforge/internal/pricing"
)

func TestLedgerTotalsMatchUsages(t *testing.T) {
	l := pricing.NewLedger()
	l.Record("gemini-2.5-flash", "single", 100, 400)
	l.Record("gemini-2.5-flash", "series", 250, 1600)
	snap := l.Record("gemini-2.5-pro", "single", 50, 200)

	var in, out int
	for _, u := range l.Usages() {
		in += u.InputTokens
		out += u.OutputTokens
	}
	assert.Equal(t, in, snap.InputTokens)
	assert.Equal(t, out, snap.OutputTokens)
	assert.Equal(t, 3, snap.Calls)
	assert.InDelta(t, snap.Cost.InputCost+snap.Cost.OutputCost, snap.Cost.Total, 1e-9)
}

func TestLedgerConcurrentRecords(t *testing.T) {
	l := pricing.NewLedger()
	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				snap := l.Record("gemini-2.5-flash", "single", 10, 40)
				// Every intermediate snapshot must already be internally
				// consistent.
				assert.Equal(t, snap.InputTokens*4, snap.OutputTokens)
			}
		}()
	}
	wg.Wait()

	snap := l.Snapshot()
	require.Equal(t, workers*perWorker, snap.Calls)
	assert.Equal(t, workers*perWorker*10, snap.InputTokens)
	assert.Equal(t, workers*perWorker*40, snap.OutputTokens)
	assert.Len(t, l.Usages(), workers*perWorker)
}

func TestCostFallsBackForUnknownModel(t *testing.T) {
	known := pricing.Cost("gemini-2.5-flash", 1_000_000, 1_000_000)
	unknown := pricing.Cost("some-future-model", 1_000_000, 1_000_000)
	assert.False(t, pricing.KnownModel("some-future-model"))
	assert.Greater(t, known.Total, 0.0)
	assert.Greater(t, unknown.Total, 0.0)
}
