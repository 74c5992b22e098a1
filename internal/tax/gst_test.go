package tax

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicecore/internal/domain"
)

func ptr(s string) *string { return &s }

func TestClassifySupply(t *testing.T) {
	tests := []struct {
		name   string
		seller *string
		buyer  *string
		want   domain.SupplyType
	}{
		{"same state", ptr("07"), ptr("07"), domain.SupplyIntraState},
		{"same state with padding", ptr(" 07"), ptr("07 "), domain.SupplyIntraState},
		{"different states", ptr("07"), ptr("09"), domain.SupplyInterState},
		{"buyer unknown", ptr("07"), nil, domain.SupplyInterState},
		{"seller unknown", nil, ptr("07"), domain.SupplyInterState},
		{"both unknown", nil, nil, domain.SupplyInterState},
		{"blank codes", ptr("  "), ptr("  "), domain.SupplyInterState},
		{"empty codes", ptr(""), ptr(""), domain.SupplyInterState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySupply(tt.seller, tt.buyer))
		})
	}
}

func TestComputeGSTIntraState(t *testing.T) {
	b, err := ComputeGST(1000, domain.SupplyIntraState, DefaultRate)
	require.NoError(t, err)

	assert.InDelta(t, 0.09, b.CGSTRate, 1e-12)
	assert.InDelta(t, 0.09, b.SGSTRate, 1e-12)
	assert.InDelta(t, 90, b.CGSTAmount, 1e-9)
	assert.Equal(t, b.CGSTAmount, b.SGSTAmount)
	assert.Zero(t, b.IGSTRate)
	assert.Zero(t, b.IGSTAmount)
	assert.Equal(t, b.CGSTAmount+b.SGSTAmount, b.TotalTax)
}

func TestComputeGSTInterState(t *testing.T) {
	b, err := ComputeGST(1000, domain.SupplyInterState, DefaultRate)
	require.NoError(t, err)

	assert.InDelta(t, 180, b.IGSTAmount, 1e-9)
	assert.Equal(t, DefaultRate, b.IGSTRate)
	assert.Zero(t, b.CGSTAmount)
	assert.Zero(t, b.SGSTAmount)
	assert.Equal(t, b.IGSTAmount, b.TotalTax)
}

func TestComputeGSTZeroTaxable(t *testing.T) {
	for _, supply := range []domain.SupplyType{domain.SupplyIntraState, domain.SupplyInterState} {
		b, err := ComputeGST(0, supply, DefaultRate)
		require.NoError(t, err)
		assert.Zero(t, b.CGSTAmount)
		assert.Zero(t, b.SGSTAmount)
		assert.Zero(t, b.IGSTAmount)
		assert.Zero(t, b.TotalTax)
	}
}

func TestComputeGSTZeroRate(t *testing.T) {
	b, err := ComputeGST(2500, domain.SupplyInterState, 0)
	require.NoError(t, err)
	assert.Zero(t, b.TotalTax)
}

func TestComputeGSTConservation(t *testing.T) {
	amounts := []float64{0, 0.01, 1, 99.99, 1234.4, 1e6 + 0.37, 12345678.9, 1e15}
	rates := []float64{0, 0.05, 0.12, 0.18, 0.28, 1.5}
	for _, amount := range amounts {
		for _, rate := range rates {
			for _, supply := range []domain.SupplyType{domain.SupplyIntraState, domain.SupplyInterState} {
				b, err := ComputeGST(amount, supply, rate)
				require.NoError(t, err)
				assert.Equal(t, b.CGSTAmount+b.SGSTAmount+b.IGSTAmount, b.TotalTax,
					"amount=%v rate=%v supply=%s", amount, rate, supply)
				if supply == domain.SupplyIntraState {
					assert.Zero(t, b.IGSTAmount)
				} else {
					assert.Zero(t, b.CGSTAmount+b.SGSTAmount)
				}
			}
		}
	}
}

func TestComputeGSTRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		taxable float64
		rate    float64
	}{
		{"negative taxable", -1, DefaultRate},
		{"nan taxable", math.NaN(), DefaultRate},
		{"infinite taxable", math.Inf(1), DefaultRate},
		{"negative rate", 100, -0.18},
		{"nan rate", 100, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeGST(tt.taxable, domain.SupplyInterState, tt.rate)
			require.ErrorIs(t, err, domain.ErrNonFiniteNumeric)
		})
	}
}

func TestComputeGSTRejectsUnknownSupplyType(t *testing.T) {
	_, err := ComputeGST(100, domain.SupplyType("EXPORT"), DefaultRate)
	require.Error(t, err)
}

func TestSumKeepsConservation(t *testing.T) {
	a, err := ComputeGST(333.33, domain.SupplyIntraState, 0.05)
	require.NoError(t, err)
	b, err := ComputeGST(777.77, domain.SupplyIntraState, 0.28)
	require.NoError(t, err)

	total := Sum(a, b)
	assert.Equal(t, total.CGSTAmount+total.SGSTAmount+total.IGSTAmount, total.TotalTax)
	assert.InDelta(t, a.TotalTax+b.TotalTax, total.TotalTax, 1e-9)
	assert.Zero(t, total.CGSTRate, "mixed rates are not summarised")
	assert.Equal(t, domain.GstBreakdown{}, Sum())

	same := Sum(a, a)
	assert.Equal(t, a.CGSTRate, same.CGSTRate)
	assert.Equal(t, a.SGSTRate, same.SGSTRate)
}

func TestRateTable(t *testing.T) {
	table := RateTable{Default: 0.18, ByHSN: map[string]float64{"1006": 0.05}}
	assert.Equal(t, 0.05, table.RateFor("1006"))
	assert.Equal(t, 0.05, table.RateFor(" 1006 "))
	assert.Equal(t, 0.18, table.RateFor("8471"))
	require.NoError(t, table.Validate())

	table.ByHSN["2402"] = -0.28
	require.ErrorIs(t, table.Validate(), domain.ErrNonFiniteNumeric)
	require.ErrorIs(t, FlatRate(math.NaN()).Validate(), domain.ErrNonFiniteNumeric)
}
