// Package region rolls market aggregates up into state-based regions.
package region

import "strings"

// Other is the region of states missing from the table.
const Other = "Other"

// Table maps two-letter state codes to region names.
type Table map[string]string

// NewTable copies m with upper-cased state keys. Config loaders lower-case
// map keys, so the copy restores the canonical form.
func NewTable(m map[string]string) Table {
	t := make(Table, len(m))
	for state, region := range m {
		t[strings.ToUpper(strings.TrimSpace(state))] = region
	}
	return t
}

// Lookup returns the region of state, or Other.
func (t Table) Lookup(state string) string {
	if r, ok := t[strings.ToUpper(strings.TrimSpace(state))]; ok && r != "" {
		return r
	}
	return Other
}

// DefaultTable returns the five-region split used by the dashboard.
func DefaultTable() Table {
	t := make(Table, 51)
	for region, states := range defaultRegions {
		for _, s := range states {
			t[s] = region
		}
	}
	return t
}

var defaultRegions = map[string][]string{
	"Northeast": {"CT", "ME", "MA", "NH", "RI", "VT", "NJ", "NY", "PA"},
	"Southeast": {"DE", "DC", "FL", "GA", "MD", "NC", "SC", "VA", "WV", "AL", "KY", "MS", "TN", "AR", "LA"},
	"Midwest":   {"IL", "IN", "MI", "OH", "WI", "IA", "KS", "MN", "MO", "NE", "ND", "SD"},
	"Southwest": {"AZ", "NM", "OK", "TX"},
	"West":      {"CO", "ID", "MT", "NV", "UT", "WY", "AK", "CA", "HI", "OR", "WA"},
}
