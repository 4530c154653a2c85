// Package arbitrage holds the pure spread computation: no I/O, no clocks.
// The scanner feeds it resolved quotes and it answers which venue combination,
// if any, qualifies as an opportunity.
package arbitrage

import "math"

// SpreadPercent returns the relative price difference between two quotes as a
// percentage of the lower quote. It is symmetric in its arguments and returns
// 0 when either quote is zero or negative, so a dead pool can never produce
// an opportunity or a division by zero.
func SpreadPercent(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	lo := math.Min(a, b)
	return math.Abs(a-b) / lo * 100
}

// Combo is one unordered venue pairing, in enumeration order.
type Combo struct {
	VenueA string
	VenueB string
}

// Combos enumerates all unordered venue pairs (i < j) over the selection.
// The order is deterministic: it follows the selection order of venues, and
// downstream tie-breaking depends on it.
func Combos(venues []string) []Combo {
	if len(venues) < 2 {
		return nil
	}
	out := make([]Combo, 0, len(venues)*(len(venues)-1)/2)
	for i := 0; i < len(venues); i++ {
		for j := i + 1; j < len(venues); j++ {
			out = append(out, Combo{VenueA: venues[i], VenueB: venues[j]})
		}
	}
	return out
}

// Evaluation is a fully-resolved combo with its spread.
type Evaluation struct {
	Combo
	QuoteA float64
	QuoteB float64
	Spread float64
}

// Best evaluates every combo over the per-venue quotes and returns the one
// with the maximum spread at or above threshold. Combos missing either quote
// are skipped without affecting the rest. Ties keep the first-enumerated
// combo (strict > comparison), matching the deterministic combo order.
func Best(venues []string, quotes map[string]float64, threshold float64) (Evaluation, bool) {
	var best Evaluation
	found := false
	for _, c := range Combos(venues) {
		qa, okA := quotes[c.VenueA]
		qb, okB := quotes[c.VenueB]
		if !okA || !okB {
			continue
		}
		s := SpreadPercent(qa, qb)
		if s < threshold {
			continue
		}
		if !found || s > best.Spread {
			best = Evaluation{Combo: c, QuoteA: qa, QuoteB: qb, Spread: s}
			found = true
		}
	}
	return best, found
}
