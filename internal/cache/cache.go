package cache

import (
	"context"
	"time"

	"invoicecore/internal/domain"
)

// InvoiceCache holds assembled invoices by id. Misses return ok=false with a
// nil error.
type InvoiceCache interface {
	Get(ctx context.Context, id string) (*domain.Invoice, bool, error)
	Set(ctx context.Context, value *domain.Invoice, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type NoopInvoiceCache struct{}

func (NoopInvoiceCache) Get(_ context.Context, _ string) (*domain.Invoice, bool, error) {
	return nil, false, nil
}

func (NoopInvoiceCache) Set(_ context.Context, _ *domain.Invoice, _ time.Duration) error {
	return nil
}

func (NoopInvoiceCache) Delete(_ context.Context, _ string) error {
	return nil
}

func invoiceKey(id string) string {
	return "invoice:" + id
}

func counterKey(name string) string {
	return "seq:" + name
}
