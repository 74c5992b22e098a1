package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"invoicecore/internal/domain"
	"invoicecore/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("INVOICECORE_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set INVOICECORE_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestInvoiceVersionCheck(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	id := fmt.Sprintf("inv-it-%d", stamp)
	number := fmt.Sprintf("IT-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	})

	now := time.Now().UTC().Truncate(time.Millisecond)
	row := domain.InvoiceRow{
		ID:            id,
		Number:        number,
		IssueDate:     now,
		SellerID:      "seller-it",
		CustomerID:    "cus-it",
		CustomerText:  "cus-it|||Integration Buyer||||||||||||||||||true||||||",
		SupplyType:    string(domain.SupplyIntraState),
		ItemsText:     "li-1||||||Tea|||0902|||pkt|||2|||500|||1000",
		Status:        string(domain.InvoiceFinal),
		AmountInWords: "One Thousand",
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	if err := s.InsertInvoice(ctx, row); err != nil {
		t.Fatalf("insert invoice: %v", err)
	}

	dup := row
	dup.ID = id + "-dup"
	if err := s.InsertInvoice(ctx, dup); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on duplicate number, got %v", err)
	}

	cancelled := row
	cancelled.Version = 2
	cancelled.Status = string(domain.InvoiceCancelled)
	cancelled.CancelledAt = &now
	cancelled.CancelReason = "integration"
	if err := s.UpdateInvoice(ctx, cancelled); err != nil {
		t.Fatalf("update invoice: %v", err)
	}
	if err := s.UpdateInvoice(ctx, cancelled); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on stale version, got %v", err)
	}

	got, err := s.GetInvoice(ctx, id)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if got.Status != string(domain.InvoiceCancelled) || got.Version != 2 || got.CancelledAt == nil {
		t.Fatalf("unexpected row after cancel: %+v", got)
	}
	if got.ItemsText != row.ItemsText {
		t.Fatalf("items text changed: %q", got.ItemsText)
	}
}

func TestCounterSwap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	name := fmt.Sprintf("it-counter-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sequence_counters WHERE name = $1`, name)
	})

	v, err := s.LoadCounter(ctx, name)
	if err != nil || v != 0 {
		t.Fatalf("expected missing counter to read 0, got %d (%v)", v, err)
	}
	if ok, err := s.SwapCounter(ctx, name, 0, 1); err != nil || !ok {
		t.Fatalf("expected first swap to create the row, got %v (%v)", ok, err)
	}
	if ok, err := s.SwapCounter(ctx, name, 0, 1); err != nil || ok {
		t.Fatalf("expected stale swap to fail, got %v (%v)", ok, err)
	}
	if ok, err := s.SwapCounter(ctx, name, 1, 7); err != nil || !ok {
		t.Fatalf("expected swap 1->7, got %v (%v)", ok, err)
	}
	got, err := s.LoadCounter(ctx, name)
	if err != nil || got != 7 {
		t.Fatalf("expected 7, got %d (%v)", got, err)
	}
}
