package invoice

import (
	"invoicecore/internal/codec"
	"invoicecore/internal/domain"
)

// ToRow flattens an invoice into its persisted shape.
func ToRow(inv domain.Invoice) domain.InvoiceRow {
	return domain.InvoiceRow{
		ID:              inv.ID,
		Number:          inv.Number,
		IssueDate:       inv.IssueDate,
		SellerID:        inv.SellerID,
		CustomerID:      inv.Customer.ID,
		CustomerText:    codec.EncodeCustomer(inv.Customer),
		SupplyType:      string(inv.SupplyType),
		ItemsText:       codec.EncodeInvoiceItems(inv.Items),
		ShippingCharge:  inv.ShippingCharge,
		TotalBeforeTax:  inv.TotalBeforeTax,
		TaxLinesText:    codec.EncodeGstBreakdowns(inv.TaxLines),
		GstText:         codec.EncodeGstBreakdowns([]domain.GstBreakdown{inv.Gst}),
		TotalWithTax:    inv.TotalWithTax,
		RoundOffEnabled: inv.RoundOffEnabled,
		RoundOff:        inv.RoundOff,
		RoundedTotal:    inv.RoundedTotal,
		AmountInWords:   inv.AmountInWords,
		Status:          string(inv.Status),
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
		CancelledAt:     inv.CancelledAt,
		CancelReason:    inv.CancelReason,
		Deleted:         inv.Deleted,
		DeletedAt:       inv.DeletedAt,
		Version:         inv.Version,
	}
}

// FromRow rebuilds an invoice from a stored row. Corrupt encoded columns
// degrade to fewer items or an empty breakdown rather than an error, so old
// invoices stay viewable.
func FromRow(row domain.InvoiceRow) domain.Invoice {
	customer, ok := codec.DecodeCustomer(row.CustomerText)
	if !ok {
		customer = domain.CustomerSnapshot{ID: row.CustomerID}
	}
	var gst domain.GstBreakdown
	if decoded := codec.DecodeGstBreakdowns(row.GstText); len(decoded) > 0 {
		gst = decoded[0]
	}

	return domain.Invoice{
		ID:              row.ID,
		Number:          row.Number,
		IssueDate:       row.IssueDate,
		SellerID:        row.SellerID,
		Customer:        customer,
		SupplyType:      domain.SupplyType(row.SupplyType),
		Items:           codec.DecodeInvoiceItems(row.ItemsText),
		ShippingCharge:  row.ShippingCharge,
		TotalBeforeTax:  row.TotalBeforeTax,
		TaxLines:        codec.DecodeGstBreakdowns(row.TaxLinesText),
		Gst:             gst,
		TotalWithTax:    row.TotalWithTax,
		RoundOffEnabled: row.RoundOffEnabled,
		RoundOff:        row.RoundOff,
		RoundedTotal:    row.RoundedTotal,
		AmountInWords:   row.AmountInWords,
		Status:          domain.InvoiceStatus(row.Status),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		CancelledAt:     row.CancelledAt,
		CancelReason:    row.CancelReason,
		Deleted:         row.Deleted,
		DeletedAt:       row.DeletedAt,
		Version:         row.Version,
	}
}

func PurchaseToRow(p domain.Purchase) domain.PurchaseRow {
	return domain.PurchaseRow{
		ID:           p.ID,
		SupplierName: p.SupplierName,
		Reference:    p.Reference,
		PurchaseDate: p.PurchaseDate,
		ItemsText:    codec.EncodePurchasedItems(p.Items),
		Total:        p.Total,
		CreatedAt:    p.CreatedAt,
	}
}

func PurchaseFromRow(row domain.PurchaseRow) domain.Purchase {
	return domain.Purchase{
		ID:           row.ID,
		SupplierName: row.SupplierName,
		Reference:    row.Reference,
		PurchaseDate: row.PurchaseDate,
		Items:        codec.DecodePurchasedItems(row.ItemsText),
		Total:        row.Total,
		CreatedAt:    row.CreatedAt,
	}
}
