package upstream_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castforge/internal/upstream"
)

func TestPacerEnforcesSpacingAcrossCallers(t *testing.T) {
	spacing := 30 * time.Millisecond
	p := upstream.NewPacer(spacing)

	const callers = 4
	var mu sync.Mutex
	var stamps []time.Time

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, p.Wait(context.Background()))
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, stamps, callers)
	// The whole burst must span at least (callers-1) spacing intervals;
	// slot reservation prevents two callers computing the same wait.
	var min, max time.Time
	for i, s := range stamps {
		if i == 0 || s.Before(min) {
			min = s
		}
		if i == 0 || s.After(max) {
			max = s
		}
	}
	assert.GreaterOrEqual(t, max.Sub(min), time.Duration(callers-2)*spacing)
}

func TestPacerZeroSpacingNeverBlocks(t *testing.T) {
	p := upstream.NewPacer(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestPacerObservesCancellation(t *testing.T) {
	p := upstream.NewPacer(time.Minute)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
