package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ms05probe/internal/model"
	"github.com/roach88/ms05probe/internal/ncp"
)

type memoryRecorder struct {
	mu        sync.Mutex
	exchanges []ncp.Exchange
}

func (r *memoryRecorder) RecordExchange(_ context.Context, ex ncp.Exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges = append(r.exchanges, ex)
	return nil
}

func TestDeterministicClock_Sequence(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Zero(t, clock.Current())

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(2), clock.Current())
	assert.Equal(t, []int64{1, 2}, clock.Issued())

	clock.Reset()
	assert.Zero(t, clock.Current())
	assert.Empty(t, clock.Issued())
	assert.Equal(t, int64(1), clock.Next())
}

func TestDeterministicClock_StampsRecordedExchanges(t *testing.T) {
	ctx := context.Background()
	clock := NewDeterministicClock()

	record := func() []ncp.Exchange {
		rec := &memoryRecorder{}
		client := ncp.NewRecordingClient(DemoDevice(), rec, clock, nil)
		_, err := client.GetProperty(ctx, RootOID, model.PropBlockMembers)
		require.NoError(t, err)
		require.NoError(t, client.SetProperty(ctx, GainOID, PropGain, float64(4)))
		return rec.exchanges
	}

	first := record()
	require.Len(t, first, 2)
	assert.Equal(t, int64(1), first[0].Seq)
	assert.Equal(t, int64(2), first[1].Seq)

	clock.Reset()
	second := record()
	assert.Equal(t, first, second)
}

func TestDeterministicClock_ConcurrentNextIsUnique(t *testing.T) {
	clock := NewDeterministicClock()
	const workers, calls = 20, 50

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				clock.Next()
			}
		}()
	}
	wg.Wait()

	issued := clock.Issued()
	require.Len(t, issued, workers*calls)
	for i, seq := range issued {
		assert.Equal(t, int64(i+1), seq)
	}
}
