package network

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func decimals(vals ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestEvaluateInsufficientHistory(t *testing.T) {
	huge := decimal.NewFromInt(1_000_000)
	for _, hist := range [][]decimal.Decimal{nil, decimals("1")} {
		_, flagged := Evaluate(huge, hist)
		assert.False(t, flagged)
	}
}

func TestEvaluateThreshold(t *testing.T) {
	// population mean 5, population sd 2, cutoff 11
	hist := decimals("2", "4", "4", "4", "5", "5", "7", "9")

	tests := []struct {
		candidate string
		want      bool
	}{
		{"10.99", false},
		{"11", false},
		{"11.00", false},
		{"11.01", true},
		{"1000", true},
		{"0", false},
	}

	for _, tt := range tests {
		stats, flagged := Evaluate(decimal.RequireFromString(tt.candidate), hist)
		assert.Equal(t, tt.want, flagged, "candidate %s", tt.candidate)
		assert.Equal(t, "5.00", stats.Mean.StringFixed(2))
		assert.Equal(t, "2.00", stats.StdDev.StringFixed(2))
		assert.Equal(t, "11.00", stats.Cutoff().StringFixed(2))
		assert.Equal(t, 8, stats.Count)
	}
}

func TestSummarizeIrregular(t *testing.T) {
	stats := Summarize(decimals("16.83", "59.28", "11.20", "25.00", "33.19"))
	assert.Equal(t, "29.10", stats.Mean.StringFixed(2))
	assert.Equal(t, "16.82", stats.StdDev.StringFixed(2))
}

func TestSummarizeConstantHistory(t *testing.T) {
	stats, flagged := Evaluate(decimal.RequireFromString("7.01"), decimals("7", "7", "7"))
	assert.True(t, flagged)
	assert.True(t, stats.StdDev.IsZero())

	_, flagged = Evaluate(decimal.RequireFromString("7"), decimals("7", "7", "7"))
	assert.False(t, flagged)
}

func TestAnomalyRoundsHalfToEven(t *testing.T) {
	tests := []struct {
		history []decimal.Decimal
		mean    string
		sd      string
	}{
		// mean 1.125, sd 0.125
		{decimals("1.00", "1.25"), "1.12", "0.12"},
		// mean 50.005, sd 0.005
		{decimals("50.00", "50.01"), "50.00", "0.00"},
		// mean 2.135, sd 0.005
		{decimals("2.13", "2.14"), "2.14", "0.00"},
		{decimals("50", "60"), "55.00", "5.00"},
	}

	for _, tt := range tests {
		a := Anomaly{Stats: Summarize(tt.history)}
		assert.Equal(t, tt.mean, a.Mean(), "history %v", tt.history)
		assert.Equal(t, tt.sd, a.StdDev(), "history %v", tt.history)
	}
}
