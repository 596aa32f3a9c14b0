package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadmap/internal/model"
)

func sampleResult() *Result {
	agg := NewAggregator(testResolver(), Options{})
	add := func(city, state, cat string, n int) {
		for i := 0; i < n; i++ {
			agg.Add(model.Lead{City: city, State: state, ServiceType: cat})
		}
	}
	add("Austin", "TX", "Roofer", 5)
	add("Austin", "TX", "Bakery", 1)
	add("Dallas", "TX", "Plumber", 8)
	add("Dallas", "TX", "", 2)
	add("Denver", "CO", "Roofer", 3)
	return agg.Result()
}

func TestResult_Sorted(t *testing.T) {
	sorted := sampleResult().Sorted()
	require.Len(t, sorted, 3)
	assert.Equal(t, "Dallas", sorted[0].Key.City)
	assert.Equal(t, "Austin", sorted[1].Key.City)
	assert.Equal(t, "Denver", sorted[2].Key.City)
}

func TestResult_Sorted_TieBreaksByKey(t *testing.T) {
	agg := NewAggregator(testResolver(), Options{})
	agg.Add(model.Lead{City: "Waco", State: "TX", ServiceType: "Roofer"})
	agg.Add(model.Lead{City: "Boulder", State: "CO", ServiceType: "Roofer"})
	agg.Add(model.Lead{City: "Abilene", State: "TX", ServiceType: "Roofer"})

	sorted := agg.Result().Sorted()
	assert.Equal(t, []string{"Boulder", "Abilene", "Waco"},
		[]string{sorted[0].Key.City, sorted[1].Key.City, sorted[2].Key.City})
}

func TestResult_TopMarkets(t *testing.T) {
	top := sampleResult().TopMarkets(2)
	require.Len(t, top, 2)
	assert.Equal(t, Rank{Key: Key{City: "Dallas", State: "TX"}, Total: 10, DistinctCategories: 1}, top[0])
	assert.Equal(t, Rank{Key: Key{City: "Austin", State: "TX"}, Total: 6, DistinctCategories: 2}, top[1])

	assert.Len(t, sampleResult().TopMarkets(0), 3)
}

func TestResult_ByState(t *testing.T) {
	states := sampleResult().ByState()
	require.Len(t, states, 2)

	tx := states["TX"]
	assert.Equal(t, 16, tx.Total)
	assert.Equal(t, 2, tx.Markets)
	assert.Equal(t, 5, tx.Categories["Roofing Contractors"])
	assert.Equal(t, 8, tx.Categories["Plumbers"])
	assert.Equal(t, 1, tx.Other["Bakery"])
	assert.Equal(t, 2, tx.Uncategorized)

	assert.Equal(t, 3, states["CO"].Total)
}

func TestResult_Matrix(t *testing.T) {
	cells := sampleResult().Matrix()
	require.Len(t, cells, 4)
	assert.Equal(t, Cell{Key: Key{City: "Dallas", State: "TX"}, Category: "Plumbers", Core: true, Count: 8}, cells[0])
	assert.Equal(t, Cell{Key: Key{City: "Austin", State: "TX"}, Category: "Roofing Contractors", Core: true, Count: 5}, cells[1])
	assert.Equal(t, Cell{Key: Key{City: "Austin", State: "TX"}, Category: "Bakery", Count: 1}, cells[2])
	assert.Equal(t, "Denver", cells[3].Key.City)
}
