package arbitrage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpreadPercent(t *testing.T) {
	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, SpreadPercent(100, 102), SpreadPercent(102, 100))
		assert.InDelta(t, 2.0, SpreadPercent(100, 102), 1e-9)
	})

	t.Run("equal quotes", func(t *testing.T) {
		assert.Equal(t, 0.0, SpreadPercent(42.5, 42.5))
	})

	t.Run("zero quote never divides", func(t *testing.T) {
		assert.Equal(t, 0.0, SpreadPercent(0, 100))
		assert.Equal(t, 0.0, SpreadPercent(100, 0))
		assert.Equal(t, 0.0, SpreadPercent(0, 0))
	})

	t.Run("spread against the lower quote", func(t *testing.T) {
		// |90-100| / 90 * 100
		assert.InDelta(t, 11.111111, SpreadPercent(90, 100), 1e-5)
	})
}

func TestCombos(t *testing.T) {
	t.Run("count is n choose 2", func(t *testing.T) {
		for n := 2; n <= 6; n++ {
			venues := make([]string, n)
			for i := range venues {
				venues[i] = fmt.Sprintf("dex%d", i)
			}
			assert.Len(t, Combos(venues), n*(n-1)/2)
		}
	})

	t.Run("fewer than two venues", func(t *testing.T) {
		assert.Nil(t, Combos(nil))
		assert.Nil(t, Combos([]string{"UniV2"}))
	})

	t.Run("deterministic enumeration order", func(t *testing.T) {
		got := Combos([]string{"a", "b", "c"})
		want := []Combo{
			{VenueA: "a", VenueB: "b"},
			{VenueA: "a", VenueB: "c"},
			{VenueA: "b", VenueB: "c"},
		}
		assert.Equal(t, want, got)
	})
}

func TestBest(t *testing.T) {
	venues := []string{"UniV2", "SushiV2", "PancakeV2"}

	t.Run("picks maximum spread at or above threshold", func(t *testing.T) {
		quotes := map[string]float64{"UniV2": 100, "SushiV2": 102, "PancakeV2": 105}
		best, ok := Best(venues, quotes, 1.0)
		require.True(t, ok)
		assert.Equal(t, "UniV2", best.VenueA)
		assert.Equal(t, "PancakeV2", best.VenueB)
		assert.InDelta(t, 5.0, best.Spread, 1e-9)
	})

	t.Run("nothing at threshold", func(t *testing.T) {
		quotes := map[string]float64{"UniV2": 100, "SushiV2": 100.5, "PancakeV2": 100.2}
		_, ok := Best(venues, quotes, 1.0)
		assert.False(t, ok)
	})

	t.Run("missing quote eliminates only its combos", func(t *testing.T) {
		quotes := map[string]float64{"UniV2": 100, "SushiV2": 102}
		best, ok := Best(venues, quotes, 1.0)
		require.True(t, ok)
		assert.Equal(t, Combo{VenueA: "UniV2", VenueB: "SushiV2"}, best.Combo)
	})

	t.Run("tie keeps first enumerated combo", func(t *testing.T) {
		// a/b and c/d have the identical spread; a/b is enumerated first.
		vs := []string{"a", "b", "c", "d"}
		quotes := map[string]float64{"a": 100, "b": 102, "c": 200, "d": 204}
		best, ok := Best(vs, quotes, 1.0)
		require.True(t, ok)
		assert.Equal(t, Combo{VenueA: "a", VenueB: "b"}, best.Combo)
	})

	t.Run("boundary spread exactly at threshold qualifies", func(t *testing.T) {
		quotes := map[string]float64{"UniV2": 100, "SushiV2": 101}
		best, ok := Best([]string{"UniV2", "SushiV2"}, quotes, 1.0)
		require.True(t, ok)
		assert.InDelta(t, 1.0, best.Spread, 1e-9)
	})
}
