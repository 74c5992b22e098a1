// Package sequence issues invoice numbers from a durable counter.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"invoicecore/internal/logger"
)

// InvoiceCounter is the name of the counter backing invoice numbers.
const InvoiceCounter = "invoice_number"

// maxSwapAttempts bounds how often Next retries when another process moves
// the counter between its load and its swap.
const maxSwapAttempts = 16

// ErrContended is returned by Next when the counter kept moving under it.
var ErrContended = errors.New("counter is contended")

// CounterStore persists named counters. A counter that was never stored loads
// as zero. Only an Allocator may write a counter.
//
// SwapCounter sets the counter to next only if it still holds old, and reports
// whether it did. The check and the write must be atomic in the backing store,
// which is what keeps allocators in separate processes from issuing the same
// number.
type CounterStore interface {
	LoadCounter(ctx context.Context, name string) (int64, error)
	SwapCounter(ctx context.Context, name string, old int64, next int64) (bool, error)
}

// Allocator serializes every read-increment-write of one counter behind a
// mutex, so concurrent callers in one process never receive the same number.
// Across processes the store's compare-and-swap gives the same guarantee.
type Allocator struct {
	mu     sync.Mutex
	store  CounterStore
	name   string
	prefix string
	log    zerolog.Logger
}

func NewAllocator(store CounterStore, name string, prefix string) *Allocator {
	if name == "" {
		name = InvoiceCounter
	}
	return &Allocator{
		store:  store,
		name:   name,
		prefix: strings.TrimSpace(prefix),
		log:    logger.WithComponent("sequence"),
	}
}

// Next unconditionally allocates the next number: it advances the counter by
// one and returns the new value. Invoice generation does not use it; it peeks
// and confirms instead so that edited numbers leave the counter alone.
func (a *Allocator) Next(ctx context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		current, err := a.store.LoadCounter(ctx, a.name)
		if err != nil {
			return 0, fmt.Errorf("load counter %s: %w", a.name, err)
		}
		swapped, err := a.store.SwapCounter(ctx, a.name, current, current+1)
		if err != nil {
			return 0, fmt.Errorf("store counter %s: %w", a.name, err)
		}
		if swapped {
			return current + 1, nil
		}
	}
	return 0, fmt.Errorf("advance counter %s: %w", a.name, ErrContended)
}

// PeekSuggested returns the number the next generation should use. It does not
// reserve the number; another writer may take it first.
func (a *Allocator) PeekSuggested(ctx context.Context) (int64, error) {
	current, err := a.store.LoadCounter(ctx, a.name)
	if err != nil {
		return 0, fmt.Errorf("load counter %s: %w", a.name, err)
	}
	return current + 1, nil
}

// Format renders n as a display number.
func (a *Allocator) Format(n int64) string {
	return a.prefix + strconv.FormatInt(n, 10)
}

// ConfirmIfSuggested is called after an invoice numbered usedNumber has been
// persisted. The counter advances by one only when usedNumber is the current
// suggestion; edited numbers, and numbers already confirmed, leave it alone.
func (a *Allocator) ConfirmIfSuggested(ctx context.Context, usedNumber string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, err := a.store.LoadCounter(ctx, a.name)
	if err != nil {
		return false, fmt.Errorf("load counter %s: %w", a.name, err)
	}
	if strings.TrimSpace(usedNumber) != a.Format(current+1) {
		a.log.Debug().
			Str("counter", a.name).
			Str("used", usedNumber).
			Int64("current", current).
			Msg("number differs from suggestion, counter unchanged")
		return false, nil
	}
	swapped, err := a.store.SwapCounter(ctx, a.name, current, current+1)
	if err != nil {
		return false, fmt.Errorf("store counter %s: %w", a.name, err)
	}
	if !swapped {
		a.log.Warn().
			Str("counter", a.name).
			Str("used", usedNumber).
			Msg("counter moved by another writer, not advanced")
	}
	return swapped, nil
}
