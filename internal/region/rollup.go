package region

import (
	"cmp"
	"slices"

	"github.com/sells-group/leadmap/internal/market"
	"github.com/sells-group/leadmap/internal/opportunity"
)

// Region aggregates the markets of its member states.
type Region struct {
	Name          string         `json:"name"`
	Total         int            `json:"total"`
	States        []string       `json:"states"`
	Markets       []market.Key   `json:"markets"`
	Categories    map[string]int `json:"categories"`
	Other         map[string]int `json:"other"`
	Uncategorized int            `json:"uncategorized"`
}

// Rollup sums markets into regions. Unmapped states land in Other.
func Rollup(markets []*market.Market, t Table) map[string]*Region {
	out := make(map[string]*Region)
	states := make(map[string]map[string]bool)
	for _, m := range markets {
		name := t.Lookup(m.Key.State)
		r, ok := out[name]
		if !ok {
			r = &Region{
				Name:       name,
				Categories: make(map[string]int),
				Other:      make(map[string]int),
			}
			out[name] = r
			states[name] = make(map[string]bool)
		}
		r.Total += m.Total
		r.Uncategorized += m.Uncategorized
		r.Markets = append(r.Markets, m.Key)
		for c, n := range m.Categories {
			r.Categories[c] += n
		}
		for c, n := range m.Other {
			r.Other[c] += n
		}
		if !states[name][m.Key.State] {
			states[name][m.Key.State] = true
			r.States = append(r.States, m.Key.State)
		}
	}
	for _, r := range out {
		slices.Sort(r.States)
	}
	return out
}

// TopMarkets returns the n largest member markets of r from res.
func (r *Region) TopMarkets(res *market.Result, n int) []market.Rank {
	members := make([]*market.Market, 0, len(r.Markets))
	for _, k := range r.Markets {
		if m := res.Get(k); m != nil {
			members = append(members, m)
		}
	}
	slices.SortFunc(members, func(a, b *market.Market) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Key.String(), b.Key.String())
	})
	if n > 0 && len(members) > n {
		members = members[:n]
	}
	out := make([]market.Rank, len(members))
	for i, m := range members {
		out[i] = market.Rank{Key: m.Key, Total: m.Total, DistinctCategories: m.DistinctCategories()}
	}
	return out
}

// Share returns the percentage of the region's leads in category.
func (r *Region) Share(category string) float64 {
	if r.Total == 0 {
		return 0
	}
	return 100 * float64(r.Categories[category]) / float64(r.Total)
}

// Gap is a watched category that is thin across a whole region.
type Gap struct {
	Region       string  `json:"region"`
	Category     string  `json:"category"`
	GrowthWeight float64 `json:"growth_weight"`
	Count        int     `json:"count"`
	RegionTotal  int     `json:"region_total"`
	SharePct     float64 `json:"share_pct"`
}

// Gaps lists watched categories whose share of a region is below
// thresholdPct, ordered by region then by share ascending.
func Gaps(regions map[string]*Region, watched []opportunity.Watched, thresholdPct float64) []Gap {
	var out []Gap
	for _, r := range sortedRegions(regions) {
		out = append(out, regionGaps(r, watched, thresholdPct)...)
	}
	return out
}

func regionGaps(r *Region, watched []opportunity.Watched, thresholdPct float64) []Gap {
	var out []Gap
	for _, w := range watched {
		share := r.Share(w.Name)
		if share >= thresholdPct {
			continue
		}
		out = append(out, Gap{
			Region:       r.Name,
			Category:     w.Name,
			GrowthWeight: w.GrowthWeight,
			Count:        r.Categories[w.Name],
			RegionTotal:  r.Total,
			SharePct:     share,
		})
	}
	slices.SortStableFunc(out, func(a, b Gap) int {
		if c := cmp.Compare(a.SharePct, b.SharePct); c != 0 {
			return c
		}
		return cmp.Compare(b.GrowthWeight, a.GrowthWeight)
	})
	return out
}

// Summary is the report row for one region.
type Summary struct {
	Name        string   `json:"name"`
	Total       int      `json:"total"`
	States      []string `json:"states"`
	MarketCount int      `json:"market_count"`
	Missing     []Gap    `json:"missing"`
}

// Summaries returns one row per region ordered by total descending, each
// with the watched categories below thresholdPct.
func Summaries(regions map[string]*Region, watched []opportunity.Watched, thresholdPct float64) []Summary {
	sorted := sortedRegions(regions)
	out := make([]Summary, len(sorted))
	for i, r := range sorted {
		out[i] = Summary{
			Name:        r.Name,
			Total:       r.Total,
			States:      r.States,
			MarketCount: len(r.Markets),
			Missing:     regionGaps(r, watched, thresholdPct),
		}
	}
	return out
}

func sortedRegions(regions map[string]*Region) []*Region {
	out := make([]*Region, 0, len(regions))
	for _, r := range regions {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Region) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// GroupByRegion buckets opportunity records by the region of their market.
func GroupByRegion(records []opportunity.Record, t Table) map[string][]opportunity.Record {
	return opportunity.GroupBy(records, func(r opportunity.Record) string {
		return t.Lookup(r.Market.State)
	})
}
