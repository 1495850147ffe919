package network

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// minHistory is the smallest baseline the detector will judge against.
	minHistory = 2
	// sigmas is the number of standard deviations above the mean that a
	// purchase must exceed to be flagged.
	sigmas = 3

	divPrecision = 16
)

// Stats summarises a purchase baseline.
type Stats struct {
	Mean   decimal.Decimal
	StdDev decimal.Decimal
	Count  int
}

// Cutoff is mean + 3 standard deviations.
func (s Stats) Cutoff() decimal.Decimal {
	return s.Mean.Add(s.StdDev.Mul(decimal.NewFromInt(sigmas)))
}

// Evaluate reports whether candidate strictly exceeds the cutoff derived from
// history using the population mean and standard deviation. Fewer than two
// historical amounts never flag.
func Evaluate(candidate decimal.Decimal, history []decimal.Decimal) (Stats, bool) {
	if len(history) < minHistory {
		return Stats{Count: len(history)}, false
	}
	stats := Summarize(history)
	return stats, candidate.GreaterThan(stats.Cutoff())
}

// Summarize computes the population mean and standard deviation of amounts.
func Summarize(amounts []decimal.Decimal) Stats {
	if len(amounts) == 0 {
		return Stats{}
	}
	n := decimal.NewFromInt(int64(len(amounts)))
	mean := decimal.Sum(amounts[0], amounts[1:]...).DivRound(n, divPrecision)

	squares := decimal.Zero
	for _, a := range amounts {
		d := a.Sub(mean)
		squares = squares.Add(d.Mul(d))
	}
	variance := squares.DivRound(n, divPrecision)

	return Stats{
		Mean:   mean,
		StdDev: sqrt(variance),
		Count:  len(amounts),
	}
}

// sqrt refines the float64 root with one Newton step in decimal so exact
// squares (25 -> 5) stay exact.
func sqrt(v decimal.Decimal) decimal.Decimal {
	if v.Sign() <= 0 {
		return decimal.Zero
	}
	guess := decimal.NewFromFloat(math.Sqrt(v.InexactFloat64()))
	if guess.IsZero() {
		return guess
	}
	two := decimal.NewFromInt(2)
	return guess.Add(v.DivRound(guess, divPrecision)).DivRound(two, divPrecision)
}
