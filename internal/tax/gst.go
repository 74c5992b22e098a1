// Package tax computes GST breakdowns and classifies supplies as intra- or
// inter-state.
package tax

import (
	"fmt"
	"math"
	"strings"

	"invoicecore/internal/domain"
)

// DefaultRate is the flat GST rate applied when no other rate is configured.
const DefaultRate = 0.18

// ClassifySupply treats a supply as intra-state only when both state codes are
// known and equal. Anything unknown is assumed inter-state.
func ClassifySupply(sellerState, buyerState *string) domain.SupplyType {
	if sellerState == nil || buyerState == nil {
		return domain.SupplyInterState
	}
	seller := strings.TrimSpace(*sellerState)
	buyer := strings.TrimSpace(*buyerState)
	if seller == "" || buyer == "" || seller != buyer {
		return domain.SupplyInterState
	}
	return domain.SupplyIntraState
}

// ComputeGST splits rate into CGST and SGST halves for intra-state supplies
// and applies it as IGST otherwise.
func ComputeGST(taxable float64, supply domain.SupplyType, rate float64) (domain.GstBreakdown, error) {
	if err := CheckAmount("taxable amount", taxable); err != nil {
		return domain.GstBreakdown{}, err
	}
	if err := CheckAmount("gst rate", rate); err != nil {
		return domain.GstBreakdown{}, err
	}

	switch supply {
	case domain.SupplyIntraState:
		half := rate / 2
		cgst := taxable * half
		sgst := taxable * half
		return domain.GstBreakdown{
			CGSTRate:   half,
			SGSTRate:   half,
			CGSTAmount: cgst,
			SGSTAmount: sgst,
			TotalTax:   cgst + sgst,
		}, nil
	case domain.SupplyInterState:
		igst := taxable * rate
		return domain.GstBreakdown{
			IGSTRate:   rate,
			IGSTAmount: igst,
			TotalTax:   igst,
		}, nil
	default:
		return domain.GstBreakdown{}, fmt.Errorf("unknown supply type %q", supply)
	}
}

// Sum adds breakdowns component-wise and recomputes TotalTax from the summed
// amounts. A rate is kept only when every part carries the same value;
// otherwise it is left zero and the parts hold the per-rate detail.
func Sum(parts ...domain.GstBreakdown) domain.GstBreakdown {
	var out domain.GstBreakdown
	if len(parts) == 0 {
		return out
	}
	out.CGSTRate, out.SGSTRate, out.IGSTRate = parts[0].CGSTRate, parts[0].SGSTRate, parts[0].IGSTRate
	for _, part := range parts {
		if part.CGSTRate != out.CGSTRate {
			out.CGSTRate = 0
		}
		if part.SGSTRate != out.SGSTRate {
			out.SGSTRate = 0
		}
		if part.IGSTRate != out.IGSTRate {
			out.IGSTRate = 0
		}
		out.CGSTAmount += part.CGSTAmount
		out.SGSTAmount += part.SGSTAmount
		out.IGSTAmount += part.IGSTAmount
	}
	out.TotalTax = out.CGSTAmount + out.SGSTAmount + out.IGSTAmount
	return out
}

// CheckAmount rejects NaN, infinite and negative values, naming the input in
// the returned error.
func CheckAmount(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%s %v: %w", name, v, domain.ErrNonFiniteNumeric)
	}
	return nil
}
