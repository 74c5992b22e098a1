package tax

import (
	"fmt"
	"strings"
)

// RateTable maps HSN codes to GST rates. Codes without an entry use Default.
type RateTable struct {
	Default float64
	ByHSN   map[string]float64
}

func FlatRate(rate float64) RateTable {
	return RateTable{Default: rate}
}

func (t RateTable) RateFor(hsn string) float64 {
	if rate, ok := t.ByHSN[strings.TrimSpace(hsn)]; ok {
		return rate
	}
	return t.Default
}

func (t RateTable) Validate() error {
	if err := CheckAmount("default gst rate", t.Default); err != nil {
		return err
	}
	for hsn, rate := range t.ByHSN {
		if err := CheckAmount(fmt.Sprintf("gst rate for hsn %s", hsn), rate); err != nil {
			return err
		}
	}
	return nil
}
