// Package opportunity scores under-served (market, category) pairs: large
// markets where a fast-growing category has little or no presence.
package opportunity

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/sells-group/leadmap/internal/config"
	"github.com/sells-group/leadmap/internal/market"
)

// Tier labels how thin a category's presence is in a market.
type Tier string

const (
	TierNoPresence Tier = "NO_PRESENCE"
	TierVeryLow    Tier = "VERY_LOW"
	TierLow        Tier = "LOW"
	TierModerate   Tier = "MODERATE"
)

// Watched is an emerging category with an externally supplied growth weight.
type Watched struct {
	Name         string  `json:"name"`
	GrowthWeight float64 `json:"growth_weight"`
}

// Params are the scoring thresholds.
type Params struct {
	// MinMarketSize excludes markets with fewer leads than this.
	MinMarketSize int `json:"min_market_size"`
	// MaxCoveragePercent is the strict upper bound on a category's share of
	// the market for a record to be emitted.
	MaxCoveragePercent float64 `json:"max_coverage_percent"`
	// VeryLowPercent and LowPercent are the tier boundaries.
	VeryLowPercent float64 `json:"very_low_percent"`
	LowPercent     float64 `json:"low_percent"`
	// PrioritizeEmerging sorts Hot categories ahead of everything else.
	PrioritizeEmerging bool     `json:"prioritize_emerging"`
	Hot                []string `json:"hot,omitempty"`
}

// DefaultParams mirrors the thresholds used by the market-gap reports.
func DefaultParams() Params {
	return Params{
		MinMarketSize:      10,
		MaxCoveragePercent: 5,
		VeryLowPercent:     1,
		LowPercent:         3,
	}
}

// Validate checks that the thresholds are usable. The comparisons are
// written so NaN fails them.
func (p Params) Validate() error {
	var problems []string
	if p.MinMarketSize <= 0 {
		problems = append(problems, "min_market_size must be > 0")
	}
	if !(p.MaxCoveragePercent > 0 && p.MaxCoveragePercent <= 100) {
		problems = append(problems, "max_coverage_percent must be in (0, 100]")
	}
	if !(p.VeryLowPercent >= 0 && p.VeryLowPercent <= 100) {
		problems = append(problems, "very_low_percent must be between 0 and 100")
	}
	if !(p.LowPercent >= 0 && p.LowPercent <= 100) {
		problems = append(problems, "low_percent must be between 0 and 100")
	}
	if p.LowPercent < p.VeryLowPercent {
		problems = append(problems, "low_percent must be >= very_low_percent")
	}
	return config.NewValidationError("opportunity", problems)
}

// ValidateWatched rejects blank or duplicate names and negative weights.
func ValidateWatched(watched []Watched) error {
	var problems []string
	seen := make(map[string]bool, len(watched))
	for i, w := range watched {
		name := strings.TrimSpace(w.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("watched category #%d has an empty name", i+1))
			continue
		}
		if seen[strings.ToLower(name)] {
			problems = append(problems, fmt.Sprintf("watched category %q listed twice", name))
		}
		seen[strings.ToLower(name)] = true
		switch {
		case math.IsNaN(w.GrowthWeight) || math.IsInf(w.GrowthWeight, 0):
			problems = append(problems, fmt.Sprintf("watched category %q growth weight must be finite", name))
		case w.GrowthWeight < 0:
			problems = append(problems, fmt.Sprintf("watched category %q has a negative growth weight", name))
		}
	}
	return config.NewValidationError("opportunity", problems)
}

// Record is one scored (market, category) opportunity.
type Record struct {
	Market       market.Key `json:"market"`
	Category     string     `json:"category"`
	GrowthWeight float64    `json:"growth_weight"`
	Current      int        `json:"current"`
	MarketTotal  int        `json:"market_total"`
	CoveragePct  float64    `json:"coverage_pct"`
	Score        float64    `json:"score"`
	Tier         Tier       `json:"tier"`
	Hot          bool       `json:"hot"`
}

// ComputeScore returns marketTotal*growthWeight/(current+1). The +1 keeps
// zero-competition markets finite while still ranking them first.
func ComputeScore(marketTotal int, growthWeight float64, current int) float64 {
	return float64(marketTotal) * growthWeight / float64(current+1)
}

// Classify assigns the tier for a category's presence.
func (p Params) Classify(current int, coveragePct float64) Tier {
	switch {
	case current == 0:
		return TierNoPresence
	case coveragePct < p.VeryLowPercent:
		return TierVeryLow
	case coveragePct < p.LowPercent:
		return TierLow
	default:
		return TierModerate
	}
}

// Score cross-references markets with the watched categories and returns the
// ranked low-coverage opportunities. It is a pure function of its inputs.
func Score(markets []*market.Market, watched []Watched, p Params) ([]Record, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateWatched(watched); err != nil {
		return nil, err
	}

	hot := make(map[string]bool, len(p.Hot))
	for _, h := range p.Hot {
		hot[strings.ToLower(strings.TrimSpace(h))] = true
	}

	var out []Record
	for _, m := range markets {
		if m.Total < p.MinMarketSize {
			continue
		}
		for _, w := range watched {
			current := m.Count(w.Name)
			pct := 100 * float64(current) / float64(m.Total)
			if pct >= p.MaxCoveragePercent {
				continue
			}
			out = append(out, Record{
				Market:       m.Key,
				Category:     w.Name,
				GrowthWeight: w.GrowthWeight,
				Current:      current,
				MarketTotal:  m.Total,
				CoveragePct:  pct,
				Score:        ComputeScore(m.Total, w.GrowthWeight, current),
				Tier:         p.Classify(current, pct),
				Hot:          hot[strings.ToLower(w.Name)],
			})
		}
	}

	Sort(out, p.PrioritizeEmerging)
	return out, nil
}

// Sort orders records by score, then market size, descending. When
// prioritize is set, hot categories come first regardless of score.
func Sort(records []Record, prioritize bool) {
	slices.SortStableFunc(records, func(a, b Record) int {
		if prioritize && a.Hot != b.Hot {
			if a.Hot {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(b.MarketTotal, a.MarketTotal); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Market.String(), b.Market.String()); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
}

// GroupByCategory buckets records by category, preserving rank order.
func GroupByCategory(records []Record) map[string][]Record {
	out := make(map[string][]Record)
	for _, r := range records {
		out[r.Category] = append(out[r.Category], r)
	}
	return out
}

// GroupBy buckets records with an arbitrary key function, preserving rank
// order. The region roll-up uses it with a state-to-region lookup.
func GroupBy(records []Record, key func(Record) string) map[string][]Record {
	out := make(map[string][]Record)
	for _, r := range records {
		k := key(r)
		out[k] = append(out[k], r)
	}
	return out
}
