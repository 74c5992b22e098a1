package codec

import (
	"strconv"

	"invoicecore/internal/domain"
)

const (
	lineItemFields     = 8
	gstBreakdownFields = 7
	customerFields     = 10
)

func lineItemToFields(item domain.LineItem) []string {
	return []string{
		item.ID,
		formatOptional(item.ProductID),
		item.Name,
		item.HSN,
		item.Unit,
		formatFloat(item.Quantity),
		formatFloat(item.Price),
		formatFloat(item.Total),
	}
}

func lineItemFromFields(f []string) domain.LineItem {
	return domain.LineItem{
		ID:        f[0],
		ProductID: parseOptional(f[1]),
		Name:      f[2],
		HSN:       f[3],
		Unit:      f[4],
		Quantity:  parseFloat(f[5]),
		Price:     parseFloat(f[6]),
		Total:     parseFloat(f[7]),
	}
}

func EncodePurchasedItems(items []domain.PurchasedItem) string {
	return encodeRecords(items, func(item domain.PurchasedItem) []string {
		return lineItemToFields(domain.LineItem(item))
	})
}

func DecodePurchasedItems(text string) []domain.PurchasedItem {
	return decodeRecords("purchased_item", text, lineItemFields, func(f []string) domain.PurchasedItem {
		return domain.PurchasedItem(lineItemFromFields(f))
	})
}

func EncodeInvoiceItems(items []domain.InvoiceItem) string {
	return encodeRecords(items, func(item domain.InvoiceItem) []string {
		return lineItemToFields(domain.LineItem(item))
	})
}

func DecodeInvoiceItems(text string) []domain.InvoiceItem {
	return decodeRecords("invoice_item", text, lineItemFields, func(f []string) domain.InvoiceItem {
		return domain.InvoiceItem(lineItemFromFields(f))
	})
}

func EncodeGstBreakdowns(breakdowns []domain.GstBreakdown) string {
	return encodeRecords(breakdowns, func(b domain.GstBreakdown) []string {
		return []string{
			formatFloat(b.CGSTRate),
			formatFloat(b.SGSTRate),
			formatFloat(b.IGSTRate),
			formatFloat(b.CGSTAmount),
			formatFloat(b.SGSTAmount),
			formatFloat(b.IGSTAmount),
			formatFloat(b.TotalTax),
		}
	})
}

func DecodeGstBreakdowns(text string) []domain.GstBreakdown {
	return decodeRecords("gst_breakdown", text, gstBreakdownFields, func(f []string) domain.GstBreakdown {
		return domain.GstBreakdown{
			CGSTRate:   parseFloat(f[0]),
			SGSTRate:   parseFloat(f[1]),
			IGSTRate:   parseFloat(f[2]),
			CGSTAmount: parseFloat(f[3]),
			SGSTAmount: parseFloat(f[4]),
			IGSTAmount: parseFloat(f[5]),
			TotalTax:   parseFloat(f[6]),
		}
	})
}

// EncodeCustomer writes a single snapshot as one record.
func EncodeCustomer(c domain.CustomerSnapshot) string {
	return encodeRecords([]domain.CustomerSnapshot{c}, func(c domain.CustomerSnapshot) []string {
		return []string{
			c.ID,
			c.Name,
			formatOptional(c.GSTIN),
			c.Address,
			formatOptional(c.Phone),
			formatOptional(c.Email),
			formatOptional(c.StateCode),
			strconv.FormatBool(c.Active),
			formatTime(c.CreatedAt),
			formatTime(c.UpdatedAt),
		}
	})
}

// DecodeCustomer returns false when text does not hold a well-formed snapshot.
// Extra records after the first are ignored.
func DecodeCustomer(text string) (domain.CustomerSnapshot, bool) {
	snapshots := decodeRecords("customer", text, customerFields, func(f []string) domain.CustomerSnapshot {
		return domain.CustomerSnapshot{
			ID:        f[0],
			Name:      f[1],
			GSTIN:     parseOptional(f[2]),
			Address:   f[3],
			Phone:     parseOptional(f[4]),
			Email:     parseOptional(f[5]),
			StateCode: parseOptional(f[6]),
			Active:    parseBool(f[7]),
			CreatedAt: parseTime(f[8]),
			UpdatedAt: parseTime(f[9]),
		}
	})
	if len(snapshots) == 0 {
		return domain.CustomerSnapshot{}, false
	}
	return snapshots[0], true
}
