package invoice

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicecore/internal/domain"
	"invoicecore/internal/tax"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func baseInput() AssembleInput {
	return AssembleInput{
		ID:        "inv-1",
		Number:    "17",
		IssueDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		SellerID:  "seller-1",
		Customer: domain.CustomerSnapshot{
			ID:        "cus-1",
			Name:      "Kaveri Stores",
			StateCode: strPtr("29"),
			Active:    true,
		},
		SupplyType: domain.SupplyIntraState,
		Items: []domain.InvoiceItem{
			domain.NewInvoiceItem("li-1", strPtr("prd-9"), "Filter Coffee 1kg", "0901", "pkt", 2, 500),
		},
		ShippingCharge:  50,
		Rates:           tax.FlatRate(tax.DefaultRate),
		RoundOffEnabled: true,
		Final:           true,
		Now:             fixedNow,
	}
}

func TestAssembleIntraState(t *testing.T) {
	inv, err := Assemble(baseInput())
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceFinal, inv.Status)
	assert.Equal(t, int64(1), inv.Version)
	assert.Equal(t, 1050.0, inv.TotalBeforeTax)
	assert.InDelta(t, 94.5, inv.Gst.CGSTAmount, 1e-9)
	assert.InDelta(t, 94.5, inv.Gst.SGSTAmount, 1e-9)
	assert.Zero(t, inv.Gst.IGSTAmount)
	assert.InDelta(t, 1239, inv.TotalWithTax, 1e-9)
	assert.Equal(t, 1239.0, inv.RoundedTotal)
	assert.InDelta(t, 0, inv.RoundOff, 1e-9)
	assert.Equal(t, "One Thousand Two Hundred Thirty Nine", inv.AmountInWords)
	assert.Len(t, inv.TaxLines, 1)
	assert.Equal(t, inv.Gst, inv.TaxLines[0])
	assert.Equal(t, fixedNow, inv.CreatedAt)
}

func TestAssembleDraft(t *testing.T) {
	in := baseInput()
	in.Final = false
	inv, err := Assemble(in)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceDraft, inv.Status)
}

func TestAssembleMixedRatesInterState(t *testing.T) {
	in := baseInput()
	in.SupplyType = domain.SupplyInterState
	in.ShippingCharge = 100
	in.Rates = tax.RateTable{Default: 0.18, ByHSN: map[string]float64{"1006": 0.05}}
	in.Items = []domain.InvoiceItem{
		domain.NewInvoiceItem("li-1", nil, "Basmati Rice", "1006", "kg", 10, 100),
		domain.NewInvoiceItem("li-2", nil, "Laptop Bag", "4202", "pc", 1, 2000),
	}

	inv, err := Assemble(in)
	require.NoError(t, err)

	require.Len(t, inv.TaxLines, 2)
	assert.Equal(t, 0.05, inv.TaxLines[0].IGSTRate)
	assert.InDelta(t, 50, inv.TaxLines[0].IGSTAmount, 1e-9)
	assert.Equal(t, 0.18, inv.TaxLines[1].IGSTRate)
	assert.InDelta(t, 378, inv.TaxLines[1].IGSTAmount, 1e-9)
	assert.InDelta(t, 428, inv.Gst.TotalTax, 1e-9)
	assert.Equal(t, inv.Gst.IGSTAmount, inv.Gst.TotalTax)
	assert.Equal(t, 3100.0, inv.TotalBeforeTax)
	assert.Equal(t, 3528.0, inv.RoundedTotal)
}

func TestAssembleUsesStoredLineTotals(t *testing.T) {
	in := baseInput()
	in.ShippingCharge = 0
	item := domain.NewInvoiceItem("li-1", nil, "Diary", "4820", "pc", 3, 100)
	item.Total = 250
	in.Items = []domain.InvoiceItem{item}

	inv, err := Assemble(in)
	require.NoError(t, err)
	assert.Equal(t, 250.0, inv.TotalBeforeTax)
}

func TestAssembleRoundingDisabled(t *testing.T) {
	in := baseInput()
	in.RoundOffEnabled = false
	in.ShippingCharge = 0
	in.Items = []domain.InvoiceItem{domain.NewInvoiceItem("li-1", nil, "Pen", "9608", "pc", 1, 10.5)}
	in.Rates = tax.FlatRate(0)

	inv, err := Assemble(in)
	require.NoError(t, err)
	assert.Equal(t, 10.5, inv.RoundedTotal)
	assert.Zero(t, inv.RoundOff)
	assert.Equal(t, "Ten", inv.AmountInWords)
}

func TestAssembleRejectsInvalidInput(t *testing.T) {
	in := baseInput()
	in.Items = nil
	_, err := Assemble(in)
	require.ErrorIs(t, err, ErrNoItems)

	in = baseInput()
	in.ShippingCharge = -5
	_, err = Assemble(in)
	require.ErrorIs(t, err, domain.ErrNonFiniteNumeric)

	in = baseInput()
	in.Rates = tax.FlatRate(-0.18)
	_, err = Assemble(in)
	require.ErrorIs(t, err, domain.ErrNonFiniteNumeric)

	in = baseInput()
	in.Number = "  "
	_, err = Assemble(in)
	require.Error(t, err)

	in = baseInput()
	in.SupplyType = ""
	_, err = Assemble(in)
	require.Error(t, err)
}

func TestRoundOffSign(t *testing.T) {
	rounded, adjustment := RoundOff(1234.40, true)
	assert.Equal(t, 1234.0, rounded)
	assert.Equal(t, -0.4, adjustment)

	rounded, adjustment = RoundOff(1234.60, true)
	assert.Equal(t, 1235.0, rounded)
	assert.Equal(t, 0.4, adjustment)

	rounded, adjustment = RoundOff(1234.50, true)
	assert.Equal(t, 1235.0, rounded)
	assert.Equal(t, 0.5, adjustment)

	rounded, adjustment = RoundOff(1234.40, false)
	assert.Equal(t, 1234.40, rounded)
	assert.Zero(t, adjustment)
}

func TestCancelRequiresFinal(t *testing.T) {
	in := baseInput()
	in.Final = false
	draft, err := Assemble(in)
	require.NoError(t, err)

	_, err = Cancel(draft, "typo", fixedNow)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, domain.InvoiceDraft, te.From)
	assert.Equal(t, "cannot cancel a draft invoice; only final invoices can be cancelled", err.Error())
}

func TestCancelFinal(t *testing.T) {
	final, err := Assemble(baseInput())
	require.NoError(t, err)

	later := fixedNow.Add(time.Hour)
	cancelled, err := Cancel(final, " customer returned goods ", later)
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, later, *cancelled.CancelledAt)
	assert.Equal(t, "customer returned goods", cancelled.CancelReason)
	assert.Equal(t, final.Version+1, cancelled.Version)
	assert.Equal(t, domain.InvoiceFinal, final.Status, "input must not be mutated")

	_, err = Cancel(cancelled, "again", later)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "already cancelled")
}

func TestCancelDeleted(t *testing.T) {
	final, err := Assemble(baseInput())
	require.NoError(t, err)
	deleted := SoftDelete(final, fixedNow)

	_, err = Cancel(deleted, "late", fixedNow)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, "cannot cancel a deleted invoice", err.Error())
}

func TestFinalize(t *testing.T) {
	in := baseInput()
	in.Final = false
	draft, err := Assemble(in)
	require.NoError(t, err)

	final, err := Finalize(draft, fixedNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceFinal, final.Status)
	assert.Equal(t, int64(2), final.Version)

	_, err = Finalize(final, fixedNow)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSoftDeleteIsIdempotent(t *testing.T) {
	final, err := Assemble(baseInput())
	require.NoError(t, err)

	deleted := SoftDelete(final, fixedNow.Add(time.Hour))
	assert.True(t, deleted.Deleted)
	require.NotNil(t, deleted.DeletedAt)
	assert.Equal(t, int64(2), deleted.Version)

	again := SoftDelete(deleted, fixedNow.Add(2*time.Hour))
	assert.Equal(t, deleted, again)

	cancelled, err := Cancel(final, "dup", fixedNow)
	require.NoError(t, err)
	assert.True(t, SoftDelete(cancelled, fixedNow).Deleted)
}

func TestRowRoundTrip(t *testing.T) {
	in := baseInput()
	in.Customer.CreatedAt = time.UnixMilli(1767225600000).UTC()
	inv, err := Assemble(in)
	require.NoError(t, err)
	inv, err = Cancel(inv, "wrong buyer", fixedNow)
	require.NoError(t, err)

	row := ToRow(inv)
	assert.Equal(t, "CANCELLED", row.Status)
	assert.Equal(t, "INTRA_STATE", row.SupplyType)
	assert.Equal(t, "cus-1", row.CustomerID)
	assert.Equal(t, inv, FromRow(row))
}

func TestFromRowDegradesOnCorruptColumns(t *testing.T) {
	inv, err := Assemble(baseInput())
	require.NoError(t, err)
	row := ToRow(inv)
	row.CustomerText = "garbage"
	row.GstText = "also|||garbage"
	row.ItemsText = row.ItemsText + ";;;bad"

	got := FromRow(row)
	assert.Equal(t, "cus-1", got.Customer.ID)
	assert.Equal(t, domain.GstBreakdown{}, got.Gst)
	assert.Equal(t, inv.Items, got.Items)
}

func TestPurchaseRowRoundTrip(t *testing.T) {
	p := domain.Purchase{
		ID:           "pur-1",
		SupplierName: "Sharma Wholesale",
		PurchaseDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Items: []domain.PurchasedItem{
			domain.NewPurchasedItem("pi-1", nil, "Sugar", "1701", "kg", 50, 38),
		},
		Total:     1900,
		CreatedAt: fixedNow,
	}
	assert.Equal(t, p, PurchaseFromRow(PurchaseToRow(p)))
}
