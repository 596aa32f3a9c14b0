// Package market groups leads into (city, state) markets and derives
// per-market coverage against the service taxonomy.
package market

import (
	"strings"

	"github.com/sells-group/leadmap/internal/model"
	"github.com/sells-group/leadmap/internal/taxonomy"
)

// Key identifies a market.
type Key struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// String renders the key as "City, ST".
func (k Key) String() string {
	return k.City + ", " + k.State
}

// Market holds the lead counts of one (city, state) pair.
type Market struct {
	Key           Key            `json:"key"`
	Total         int            `json:"total"`
	Categories    map[string]int `json:"categories"`
	Other         map[string]int `json:"other"`
	Uncategorized int            `json:"uncategorized"`
}

func newMarket(k Key) *Market {
	return &Market{
		Key:        k,
		Categories: make(map[string]int),
		Other:      make(map[string]int),
	}
}

// Count returns the number of leads in canonical category name.
func (m *Market) Count(name string) int {
	return m.Categories[name]
}

// DistinctCategories counts canonical and other categories with at least one lead.
func (m *Market) DistinctCategories() int {
	return len(m.Categories) + len(m.Other)
}

// Stats tallies what the aggregator saw.
type Stats struct {
	Leads             int `json:"leads"`
	Aggregated        int `json:"aggregated"`
	SkippedNoLocation int `json:"skipped_no_location"`
}

// Options configures an Aggregator.
type Options struct {
	// Normalize folds case and whitespace in market keys so "San Diego" and
	// " san  diego" land in one market. The first spelling seen is kept for
	// display. When false, keys are the exact stored strings.
	Normalize bool
}

// Aggregator folds leads into markets one at a time. It is not safe for
// concurrent use; each analysis run owns its own Aggregator.
type Aggregator struct {
	resolver *taxonomy.Resolver
	opts     Options
	markets  map[Key]*Market
	display  map[Key]Key
	stats    Stats
}

// NewAggregator creates an Aggregator resolving categories with r.
func NewAggregator(r *taxonomy.Resolver, opts Options) *Aggregator {
	return &Aggregator{
		resolver: r,
		opts:     opts,
		markets:  make(map[Key]*Market),
		display:  make(map[Key]Key),
	}
}

// Add counts one lead. Leads without a city or state are skipped.
func (a *Aggregator) Add(l model.Lead) {
	a.stats.Leads++
	if !l.HasLocation() {
		a.stats.SkippedNoLocation++
		return
	}
	a.stats.Aggregated++

	k := a.key(l.City, l.State)
	m, ok := a.markets[k]
	if !ok {
		m = newMarket(a.display[k])
		a.markets[k] = m
	}

	m.Total++
	res := a.resolver.Resolve(l.ServiceType)
	switch {
	case res.IsCore:
		m.Categories[res.Canonical]++
	case res.Canonical != "":
		m.Other[res.Canonical]++
	default:
		m.Uncategorized++
	}
}

// AddAll counts every lead in leads.
func (a *Aggregator) AddAll(leads []model.Lead) {
	for _, l := range leads {
		a.Add(l)
	}
}

func (a *Aggregator) key(city, state string) Key {
	if !a.opts.Normalize {
		k := Key{City: city, State: state}
		a.display[k] = k
		return k
	}
	k := Key{City: strings.ToLower(collapseSpace(city)), State: strings.ToUpper(strings.TrimSpace(state))}
	if _, ok := a.display[k]; !ok {
		a.display[k] = Key{City: collapseSpace(city), State: k.State}
	}
	return k
}

// Result snapshots the aggregate. The Aggregator should not be used afterwards.
func (a *Aggregator) Result() *Result {
	markets := make(map[Key]*Market, len(a.markets))
	for _, m := range a.markets {
		markets[m.Key] = m
	}
	return &Result{Markets: markets, Stats: a.stats}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
