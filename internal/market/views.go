package market

import (
	"cmp"
	"slices"
)

// Result is the per-market aggregate of one run plus derived views.
type Result struct {
	Markets map[Key]*Market `json:"markets"`
	Stats   Stats           `json:"stats"`
}

// Get returns the market for k, or nil.
func (r *Result) Get(k Key) *Market {
	return r.Markets[k]
}

// Sorted returns markets by total descending, then by state and city.
func (r *Result) Sorted() []*Market {
	out := make([]*Market, 0, len(r.Markets))
	for _, m := range r.Markets {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *Market) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return compareKeys(a.Key, b.Key)
	})
	return out
}

// Total sums the totals of every market.
func (r *Result) Total() int {
	var n int
	for _, m := range r.Markets {
		n += m.Total
	}
	return n
}

// Rank is one row of the "top markets" table.
type Rank struct {
	Key                Key `json:"key"`
	Total              int `json:"total"`
	DistinctCategories int `json:"distinct_categories"`
}

// TopMarkets returns the n largest markets; n <= 0 returns all of them.
func (r *Result) TopMarkets(n int) []Rank {
	sorted := r.Sorted()
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]Rank, len(sorted))
	for i, m := range sorted {
		out[i] = Rank{Key: m.Key, Total: m.Total, DistinctCategories: m.DistinctCategories()}
	}
	return out
}

// StateSummary groups markets of one state.
type StateSummary struct {
	State         string         `json:"state"`
	Total         int            `json:"total"`
	Markets       int            `json:"markets"`
	Categories    map[string]int `json:"categories"`
	Other         map[string]int `json:"other"`
	Uncategorized int            `json:"uncategorized"`
}

// ByState groups the markets by state without revisiting leads.
func (r *Result) ByState() map[string]*StateSummary {
	out := make(map[string]*StateSummary)
	for _, m := range r.Markets {
		s, ok := out[m.Key.State]
		if !ok {
			s = &StateSummary{
				State:      m.Key.State,
				Categories: make(map[string]int),
				Other:      make(map[string]int),
			}
			out[m.Key.State] = s
		}
		s.Total += m.Total
		s.Markets++
		s.Uncategorized += m.Uncategorized
		for c, n := range m.Categories {
			s.Categories[c] += n
		}
		for c, n := range m.Other {
			s.Other[c] += n
		}
	}
	return out
}

// Cell is one (city, state, category) count of the coverage matrix.
type Cell struct {
	Key      Key    `json:"key"`
	Category string `json:"category"`
	Core     bool   `json:"core"`
	Count    int    `json:"count"`
}

// Matrix flattens the result into (city, state, category) cells ordered by
// market and then by count descending. Uncategorized leads are not cells.
func (r *Result) Matrix() []Cell {
	var out []Cell
	for _, m := range r.Sorted() {
		start := len(out)
		for c, n := range m.Categories {
			out = append(out, Cell{Key: m.Key, Category: c, Core: true, Count: n})
		}
		for c, n := range m.Other {
			out = append(out, Cell{Key: m.Key, Category: c, Count: n})
		}
		slices.SortFunc(out[start:], func(a, b Cell) int {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
			return cmp.Compare(a.Category, b.Category)
		})
	}
	return out
}

func compareKeys(a, b Key) int {
	if c := cmp.Compare(a.State, b.State); c != 0 {
		return c
	}
	return cmp.Compare(a.City, b.City)
}
