package words

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicecore/internal/domain"
)

func TestToWords(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "Zero"},
		{1, "One"},
		{9, "Nine"},
		{10, "Ten"},
		{15, "Fifteen"},
		{20, "Twenty"},
		{21, "Twenty One"},
		{99, "Ninety Nine"},
		{100, "One Hundred"},
		{101, "One Hundred One"},
		{110, "One Hundred Ten"},
		{999, "Nine Hundred Ninety Nine"},
		{1000, "One Thousand"},
		{1001, "One Thousand One"},
		{10000, "Ten Thousand"},
		{99999, "Ninety Nine Thousand Nine Hundred Ninety Nine"},
		{100000, "One Lakh"},
		{100100, "One Lakh One Hundred"},
		{1500000, "Fifteen Lakh"},
		{10000000, "One Crore"},
		{10000001, "One Crore One"},
		{12345678, "One Crore Twenty Three Lakh Forty Five Thousand Six Hundred Seventy Eight"},
		{1000000000, "One Hundred Crore"},
		{1000000000000, "One Lakh Crore"},
		{123456789012, "Twelve Thousand Three Hundred Forty Five Crore Sixty Seven Lakh Eighty Nine Thousand Twelve"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToWords(tt.in), "ToWords(%d)", tt.in)
	}
}

func TestToWordsHasNoStraySpaces(t *testing.T) {
	for _, n := range []uint64{1, 100000, 10000000, 10100000, 1000000000000, math.MaxUint64} {
		got := ToWords(n)
		assert.Equal(t, strings.TrimSpace(got), got)
		assert.NotContains(t, got, "  ")
		assert.NotContains(t, got, "Zero")
	}
}

func TestAmountInWordsTruncatesFraction(t *testing.T) {
	got, err := AmountInWords(1234.99)
	require.NoError(t, err)
	assert.Equal(t, "One Thousand Two Hundred Thirty Four", got)

	got, err = AmountInWords(0.75)
	require.NoError(t, err)
	assert.Equal(t, "Zero", got)
}

func TestAmountInWordsRejectsInvalid(t *testing.T) {
	for _, v := range []float64{-1, -0.5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := AmountInWords(v)
		require.ErrorIs(t, err, domain.ErrNonFiniteNumeric, "value %v", v)
	}
}

func TestAmountInWordsBeyondUint64(t *testing.T) {
	got, err := AmountInWords(1e20)
	require.NoError(t, err)
	assert.Equal(t, "Ten Lakh Crore Crore", got)

	got, err = AmountInWords(1e20 + 16384)
	require.NoError(t, err)
	assert.Equal(t, "Ten Lakh Crore Crore Sixteen Thousand Three Hundred Eighty Four", got)
}
