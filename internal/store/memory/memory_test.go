package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicecore/internal/domain"
	"invoicecore/internal/store"
)

func sampleRow(id, number string, created time.Time) domain.InvoiceRow {
	return domain.InvoiceRow{
		ID:         id,
		Number:     number,
		CustomerID: "cus-local",
		Status:     string(domain.InvoiceFinal),
		ItemsText:  "li-1||||||Tea|||0902|||pkt|||1|||100|||100",
		CreatedAt:  created,
		UpdatedAt:  created,
		Version:    1,
	}
}

func TestInvoiceInsertRejectsDuplicateNumber(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	require.NoError(t, s.InsertInvoice(ctx, sampleRow("inv-1", "1", now)))
	err := s.InsertInvoice(ctx, sampleRow("inv-2", "1", now))
	require.ErrorIs(t, err, store.ErrConflict)

	err = s.InsertInvoice(ctx, sampleRow("inv-3", " ", now))
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestUpdateInvoiceChecksVersion(t *testing.T) {
	ctx := context.Background()
	s := New()
	row := sampleRow("inv-1", "1", time.Now().UTC())
	require.NoError(t, s.InsertInvoice(ctx, row))

	stale := row
	stale.Version = 1
	require.ErrorIs(t, s.UpdateInvoice(ctx, stale), store.ErrConflict)

	next := row
	next.Version = 2
	next.Status = string(domain.InvoiceCancelled)
	require.NoError(t, s.UpdateInvoice(ctx, next))
	require.ErrorIs(t, s.UpdateInvoice(ctx, next), store.ErrConflict)

	got, err := s.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, string(domain.InvoiceCancelled), got.Status)
	assert.Equal(t, int64(2), got.Version)

	missing := sampleRow("inv-9", "9", time.Now())
	require.ErrorIs(t, s.UpdateInvoice(ctx, missing), store.ErrNotFound)
}

func TestListInvoicesAppliesFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	draft := sampleRow("inv-1", "1", base)
	draft.Status = string(domain.InvoiceDraft)
	final := sampleRow("inv-2", "2", base.Add(time.Minute))
	other := sampleRow("inv-3", "3", base.Add(2*time.Minute))
	other.CustomerID = "cus-outstation"
	deleted := sampleRow("inv-4", "4", base.Add(3*time.Minute))
	deleted.Deleted = true
	for _, row := range []domain.InvoiceRow{draft, final, other, deleted} {
		require.NoError(t, s.InsertInvoice(ctx, row))
	}

	all, err := s.ListInvoices(ctx, domain.InvoiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"inv-3", "inv-2", "inv-1"}, rowIDs(all))

	withDeleted, err := s.ListInvoices(ctx, domain.InvoiceFilter{IncludeDeleted: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"inv-4", "inv-3"}, rowIDs(withDeleted))

	finals, err := s.ListInvoices(ctx, domain.InvoiceFilter{Status: domain.InvoiceFinal, CustomerID: "cus-local"})
	require.NoError(t, err)
	assert.Equal(t, []string{"inv-2"}, rowIDs(finals))
}

func TestCustomerRecordsAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New()
	email := "accounts@kaveri.in"
	c := domain.Customer{ID: "cus-1", Name: "Kaveri", Email: &email, Active: true}
	require.NoError(t, s.CreateCustomer(ctx, c))

	email = "changed@example.com"
	got, err := s.GetCustomer(ctx, "cus-1")
	require.NoError(t, err)
	assert.Equal(t, "accounts@kaveri.in", *got.Email)

	*got.Email = "mutated@example.com"
	again, err := s.GetCustomer(ctx, "cus-1")
	require.NoError(t, err)
	assert.Equal(t, "accounts@kaveri.in", *again.Email)

	again.Active = false
	require.NoError(t, s.UpdateCustomer(ctx, *again))
	active, err := s.ListCustomers(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	everyone, err := s.ListCustomers(ctx, true)
	require.NoError(t, err)
	assert.Len(t, everyone, 1)

	_, err = s.GetCustomer(ctx, "cus-missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCounterSwapIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := New()

	v, err := s.LoadCounter(ctx, "invoice_number")
	require.NoError(t, err)
	assert.Zero(t, v)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.SwapCounter(ctx, "invoice_number", 0, 1)
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one writer may move 0 to 1")
	v, err = s.LoadCounter(ctx, "invoice_number")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = s.SwapCounter(ctx, "invoice_number", 1, -1)
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestAuditLogsFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateAuditLog(ctx, domain.AuditLog{EntityType: "invoice", Action: "invoice.generate", CreatedAt: base}))
	require.NoError(t, s.CreateAuditLog(ctx, domain.AuditLog{EntityType: "invoice", Action: "invoice.cancel", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.CreateAuditLog(ctx, domain.AuditLog{EntityType: "customer", Action: "customer.create", CreatedAt: base.Add(30 * time.Minute)}))

	logs, err := s.ListAuditLogs(ctx, "invoice", base, base.Add(24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "invoice.cancel", logs[0].Action)
	assert.NotEmpty(t, logs[0].ID)

	logs, err = s.ListAuditLogs(ctx, "", base, base.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestSeededUsersAreHashed(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-secret")
	t.Setenv("SEED_CLERK_PASSWORD", "clerk-secret")

	s, err := NewSeeded()
	require.NoError(t, err)
	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, domain.RoleClerk, users[1].Role)
	for _, u := range users {
		assert.NotEqual(t, "admin-secret", u.Password)
		assert.Contains(t, u.Password, "$2")
	}

	require.ErrorIs(t, s.CreateUser(context.Background(), domain.UserAccount{Username: "Admin", Password: "x"}), store.ErrConflict)
	require.ErrorIs(t, s.UpdateUserPassword(context.Background(), "nobody", "x"), store.ErrNotFound)

	admin, err := s.GetUser(context.Background(), " ADMIN ")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	_, err = s.GetUser(context.Background(), "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func rowIDs(rows []domain.InvoiceRow) []string {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
