package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadmap/internal/model"
	"github.com/sells-group/leadmap/internal/taxonomy"
)

func testResolver() *taxonomy.Resolver {
	return taxonomy.NewResolver(&taxonomy.Taxonomy{Categories: []taxonomy.Category{
		{Name: "Roofing Contractors", Aliases: []string{"Roofer"}},
		{Name: "EV Charging Installation"},
		{Name: "Plumbers", Aliases: []string{"Plumber"}},
	}})
}

func lead(city, state, category string) model.Lead {
	return model.Lead{City: city, State: state, ServiceType: category}
}

func TestAggregate_AustinScenario(t *testing.T) {
	agg := NewAggregator(testResolver(), Options{})
	agg.AddAll([]model.Lead{
		lead("Austin", "TX", "Roofer"),
		lead("Austin", "TX", "EV Charging Installation"),
		lead("Austin", "TX", ""),
	})
	res := agg.Result()

	m := res.Get(Key{City: "Austin", State: "TX"})
	require.NotNil(t, m)
	assert.Equal(t, "Austin, TX", m.Key.String())
	assert.Equal(t, 3, m.Total)
	assert.Equal(t, map[string]int{"Roofing Contractors": 1, "EV Charging Installation": 1}, m.Categories)
	assert.Empty(t, m.Other)
	assert.Equal(t, 1, m.Uncategorized)

	cov, err := Coverage(m, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, cov.CoreCovered)
}

func TestAggregate_SkipsMissingLocation(t *testing.T) {
	agg := NewAggregator(testResolver(), Options{})
	agg.AddAll([]model.Lead{
		lead("", "TX", "Roofer"),
		lead("Austin", "", "Roofer"),
		lead("Austin", "TX", "Roofer"),
	})
	res := agg.Result()

	assert.Len(t, res.Markets, 1)
	assert.Equal(t, 3, res.Stats.Leads)
	assert.Equal(t, 1, res.Stats.Aggregated)
	assert.Equal(t, 2, res.Stats.SkippedNoLocation)
	assert.Equal(t, 1, res.Total())
}

func TestAggregate_OtherCategories(t *testing.T) {
	agg := NewAggregator(testResolver(), Options{})
	agg.AddAll([]model.Lead{
		lead("Austin", "TX", "Dog Groomer"),
		lead("Austin", "TX", "Dog Groomer"),
		lead("Austin", "TX", "Bakery"),
	})
	m := agg.Result().Get(Key{City: "Austin", State: "TX"})
	require.NotNil(t, m)
	assert.Equal(t, map[string]int{"Dog Groomer": 2, "Bakery": 1}, m.Other)
	assert.Equal(t, 2, m.DistinctCategories())
}

func TestAggregate_ExactKeysWithoutNormalization(t *testing.T) {
	agg := NewAggregator(testResolver(), Options{Normalize: false})
	agg.AddAll([]model.Lead{
		lead("San Diego", "CA", "Roofer"),
		lead("san diego", "CA", "Roofer"),
	})
	assert.Len(t, agg.Result().Markets, 2)
}

func TestAggregate_NormalizedKeys(t *testing.T) {
	agg := NewAggregator(testResolver(), Options{Normalize: true})
	agg.AddAll([]model.Lead{
		lead("San Diego", "CA", "Roofer"),
		lead(" san  diego ", "ca", "Plumber"),
	})
	res := agg.Result()
	require.Len(t, res.Markets, 1)

	m := res.Get(Key{City: "San Diego", State: "CA"})
	require.NotNil(t, m, "first spelling is kept for display")
	assert.Equal(t, 2, m.Total)
}

func TestAggregate_TotalConservation(t *testing.T) {
	agg := NewAggregator(testResolver(), Options{Normalize: true})
	cities := []string{"Austin", "Dallas", "Houston"}
	cats := []string{"Roofer", "Plumbers", "", "Bakery", "EV Charging Installation", "roofing contractors"}
	for i := 0; i < 300; i++ {
		agg.Add(lead(cities[i%len(cities)], "TX", cats[i%len(cats)]))
	}

	for _, m := range agg.Result().Markets {
		sum := m.Uncategorized
		for _, n := range m.Categories {
			sum += n
		}
		for _, n := range m.Other {
			sum += n
		}
		assert.Equal(t, m.Total, sum, m.Key.String())
	}
}
