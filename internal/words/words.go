// Package words renders rupee amounts in English words using the Indian
// grouping of crore, lakh and thousand.
package words

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"invoicecore/internal/domain"
)

var ones = [...]string{
	"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
	"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen",
	"Seventeen", "Eighteen", "Nineteen",
}

var tens = [...]string{
	"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
}

const (
	crore    = 10_000_000
	lakh     = 100_000
	thousand = 1_000
)

// ToWords renders n, e.g. 12345678 as "One Crore Twenty Three Lakh Forty Five
// Thousand Six Hundred Seventy Eight". Zero renders as "Zero". A crore count of
// a hundred or more is itself rendered with the same grouping.
func ToWords(n uint64) string {
	if n == 0 {
		return "Zero"
	}
	return strings.Join(groups(n, nil), " ")
}

func groups(n uint64, out []string) []string {
	if n >= crore {
		out = groups(n/crore, out)
		out = append(out, "Crore")
		n %= crore
	}
	if n >= lakh {
		out = belowHundred(n/lakh, out)
		out = append(out, "Lakh")
		n %= lakh
	}
	if n >= thousand {
		out = belowHundred(n/thousand, out)
		out = append(out, "Thousand")
		n %= thousand
	}
	return belowThousand(n, out)
}

func belowThousand(n uint64, out []string) []string {
	if n >= 100 {
		out = append(out, ones[n/100], "Hundred")
		n %= 100
	}
	return belowHundred(n, out)
}

func belowHundred(n uint64, out []string) []string {
	switch {
	case n == 0:
		return out
	case n < 20:
		return append(out, ones[n])
	default:
		out = append(out, tens[n/10])
		if n%10 != 0 {
			out = append(out, ones[n%10])
		}
		return out
	}
}

// AmountInWords truncates v to whole units and renders it. Amounts beyond the
// uint64 range are split into crores with math/big.
func AmountInWords(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return "", fmt.Errorf("amount %v: %w", v, domain.ErrNonFiniteNumeric)
	}
	whole := math.Trunc(v)
	if whole < math.MaxUint64 {
		return ToWords(uint64(whole)), nil
	}
	n, _ := new(big.Float).SetFloat64(whole).Int(nil)
	return bigWords(n), nil
}

func bigWords(n *big.Int) string {
	if n.IsUint64() {
		return ToWords(n.Uint64())
	}
	q, r := new(big.Int).QuoRem(n, big.NewInt(crore), new(big.Int))
	out := bigWords(q) + " Crore"
	if r.Sign() != 0 {
		out += " " + ToWords(r.Uint64())
	}
	return out
}
