// Package invoice holds the invoice aggregate: assembling totals from line
// items, lifecycle transitions and the mapping to persisted rows.
package invoice

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"invoicecore/internal/domain"
	"invoicecore/internal/tax"
	"invoicecore/internal/words"
)

var ErrNoItems = errors.New("invoice has no line items")

type AssembleInput struct {
	ID              string
	Number          string
	IssueDate       time.Time
	SellerID        string
	Customer        domain.CustomerSnapshot
	SupplyType      domain.SupplyType
	Items           []domain.InvoiceItem
	ShippingCharge  float64
	Rates           tax.RateTable
	RoundOffEnabled bool
	Final           bool
	Now             time.Time
}

// Assemble computes the taxable amount, GST, rounded total and amount in words
// and returns a new Draft or Final invoice at version 1. It performs no I/O.
//
// Items are grouped by their GST rate; shipping is taxed at the default rate.
// Each group yields one entry in TaxLines and Gst is their sum.
func Assemble(in AssembleInput) (domain.Invoice, error) {
	if len(in.Items) == 0 {
		return domain.Invoice{}, ErrNoItems
	}
	if strings.TrimSpace(in.Number) == "" {
		return domain.Invoice{}, errors.New("invoice number is required")
	}
	if !in.SupplyType.Valid() {
		return domain.Invoice{}, fmt.Errorf("unknown supply type %q", in.SupplyType)
	}
	if err := in.Rates.Validate(); err != nil {
		return domain.Invoice{}, err
	}
	if err := tax.CheckAmount("shipping charge", in.ShippingCharge); err != nil {
		return domain.Invoice{}, err
	}

	byRate := make(map[float64]float64)
	taxable := in.ShippingCharge
	if in.ShippingCharge > 0 {
		byRate[in.Rates.Default] += in.ShippingCharge
	}
	for _, item := range in.Items {
		if err := tax.CheckAmount(fmt.Sprintf("total of item %s", item.ID), item.Total); err != nil {
			return domain.Invoice{}, err
		}
		taxable += item.Total
		byRate[in.Rates.RateFor(item.HSN)] += item.Total
	}
	if len(byRate) == 0 {
		byRate[in.Rates.Default] = 0
	}

	rates := make([]float64, 0, len(byRate))
	for rate := range byRate {
		rates = append(rates, rate)
	}
	sort.Float64s(rates)

	lines := make([]domain.GstBreakdown, 0, len(rates))
	for _, rate := range rates {
		line, err := tax.ComputeGST(byRate[rate], in.SupplyType, rate)
		if err != nil {
			return domain.Invoice{}, err
		}
		lines = append(lines, line)
	}
	gst := lines[0]
	if len(lines) > 1 {
		gst = tax.Sum(lines...)
	}

	totalWithTax := taxable + gst.TotalTax
	if err := tax.CheckAmount("invoice total", totalWithTax); err != nil {
		return domain.Invoice{}, err
	}
	rounded, adjustment := RoundOff(totalWithTax, in.RoundOffEnabled)
	inWords, err := words.AmountInWords(rounded)
	if err != nil {
		return domain.Invoice{}, err
	}

	status := domain.InvoiceDraft
	if in.Final {
		status = domain.InvoiceFinal
	}
	now := in.Now.UTC()

	return domain.Invoice{
		ID:              in.ID,
		Number:          strings.TrimSpace(in.Number),
		IssueDate:       in.IssueDate,
		SellerID:        in.SellerID,
		Customer:        in.Customer,
		SupplyType:      in.SupplyType,
		Items:           append([]domain.InvoiceItem(nil), in.Items...),
		ShippingCharge:  in.ShippingCharge,
		TotalBeforeTax:  taxable,
		TaxLines:        lines,
		Gst:             gst,
		TotalWithTax:    totalWithTax,
		RoundOffEnabled: in.RoundOffEnabled,
		RoundOff:        adjustment,
		RoundedTotal:    rounded,
		AmountInWords:   inWords,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}, nil
}
