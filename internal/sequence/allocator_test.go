package sequence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapCounters only guards its map; read-increment-write is left to the allocator.
type mapCounters struct {
	mu     sync.Mutex
	values map[string]int64
	failOn string
}

func newMapCounters() *mapCounters {
	return &mapCounters{values: map[string]int64{}}
}

func (m *mapCounters) LoadCounter(_ context.Context, name string) (int64, error) {
	if m.failOn == "load" {
		return 0, errors.New("load failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[name], nil
}

func (m *mapCounters) SwapCounter(_ context.Context, name string, old int64, next int64) (bool, error) {
	if m.failOn == "swap" {
		return false, errors.New("swap failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[name] != old {
		return false, nil
	}
	m.values[name] = next
	return true, nil
}

func TestNextUnderConcurrencyHasNoDuplicatesOrGaps(t *testing.T) {
	const k = 256
	alloc := NewAllocator(newMapCounters(), "", "")

	results := make([]int64, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := alloc.Next(context.Background())
			if err != nil {
				t.Errorf("next: %v", err)
				return
			}
			results[i] = n
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, n := range results {
		require.Equal(t, int64(i+1), n)
	}
}

func TestPeekSuggestedDoesNotMutate(t *testing.T) {
	counters := newMapCounters()
	counters.values[InvoiceCounter] = 41
	alloc := NewAllocator(counters, InvoiceCounter, "")

	for i := 0; i < 3; i++ {
		n, err := alloc.PeekSuggested(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(42), n)
	}
	assert.Equal(t, int64(41), counters.values[InvoiceCounter])
}

func TestConfirmAdvancesOnlyForSuggestedNumber(t *testing.T) {
	ctx := context.Background()
	counters := newMapCounters()
	alloc := NewAllocator(counters, InvoiceCounter, "INV-")

	suggested, err := alloc.PeekSuggested(ctx)
	require.NoError(t, err)
	require.Equal(t, "INV-1", alloc.Format(suggested))

	advanced, err := alloc.ConfirmIfSuggested(ctx, "INV-77")
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, int64(0), counters.values[InvoiceCounter])

	advanced, err = alloc.ConfirmIfSuggested(ctx, "INV-1")
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, int64(1), counters.values[InvoiceCounter])

	advanced, err = alloc.ConfirmIfSuggested(ctx, "INV-1")
	require.NoError(t, err)
	assert.False(t, advanced, "the same suggestion must not advance twice")
	assert.Equal(t, int64(1), counters.values[InvoiceCounter])
}

func TestConfirmAfterInterleavedNext(t *testing.T) {
	ctx := context.Background()
	counters := newMapCounters()
	alloc := NewAllocator(counters, InvoiceCounter, "")

	suggested, err := alloc.PeekSuggested(ctx)
	require.NoError(t, err)
	_, err = alloc.Next(ctx)
	require.NoError(t, err)

	advanced, err := alloc.ConfirmIfSuggested(ctx, alloc.Format(suggested))
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, int64(1), counters.values[InvoiceCounter])
}

func TestStoreErrorsAreReturned(t *testing.T) {
	counters := newMapCounters()
	alloc := NewAllocator(counters, InvoiceCounter, "")

	counters.failOn = "swap"
	_, err := alloc.Next(context.Background())
	require.Error(t, err)
	_, err = alloc.ConfirmIfSuggested(context.Background(), "1")
	require.Error(t, err)

	counters.failOn = "load"
	_, err = alloc.PeekSuggested(context.Background())
	require.Error(t, err)
}

func TestAllocatorsSharingAStoreNeverIssueTheSameNumber(t *testing.T) {
	const perAllocator = 128
	counters := newMapCounters()
	// Separate allocators stand in for separate processes: their mutexes do
	// not exclude each other, only the store's swap does.
	allocators := []*Allocator{
		NewAllocator(counters, InvoiceCounter, ""),
		NewAllocator(counters, InvoiceCounter, ""),
		NewAllocator(counters, InvoiceCounter, ""),
	}

	var (
		mu   sync.Mutex
		seen = map[int64]bool{}
		wg   sync.WaitGroup
	)
	for _, alloc := range allocators {
		for i := 0; i < perAllocator; i++ {
			wg.Add(1)
			go func(alloc *Allocator) {
				defer wg.Done()
				n, err := alloc.Next(context.Background())
				if errors.Is(err, ErrContended) {
					return
				}
				if err != nil {
					t.Errorf("next: %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if seen[n] {
					t.Errorf("number %d issued twice", n)
				}
				seen[n] = true
			}(alloc)
		}
	}
	wg.Wait()

	assert.Equal(t, int64(len(seen)), counters.values[InvoiceCounter])
}

// movingCounters advances the counter behind the caller's back on every load,
// like another process confirming between load and swap.
type movingCounters struct {
	mapCounters
}

func (m *movingCounters) LoadCounter(ctx context.Context, name string) (int64, error) {
	current, err := m.mapCounters.LoadCounter(ctx, name)
	m.mu.Lock()
	m.values[name] = current + 1
	m.mu.Unlock()
	return current, err
}

func TestConfirmLosesToConcurrentWriter(t *testing.T) {
	counters := &movingCounters{mapCounters{values: map[string]int64{}}}
	alloc := NewAllocator(counters, InvoiceCounter, "INV-")

	advanced, err := alloc.ConfirmIfSuggested(context.Background(), "INV-1")
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, int64(1), counters.values[InvoiceCounter], "only the other writer advanced")

	_, err = alloc.Next(context.Background())
	require.ErrorIs(t, err, ErrContended)
}
