package market

import (
	"github.com/sells-group/leadmap/internal/config"
)

// CoverageRecord describes how much of the taxonomy one market covers.
type CoverageRecord struct {
	Market             Key `json:"market"`
	Total              int `json:"total"`
	CorePercent        int `json:"core_percent"`
	CoreCovered        int `json:"core_covered"`
	CoreTotal          int `json:"core_total"`
	OtherCategoryCount int `json:"other_category_count"`
	UncategorizedCount int `json:"uncategorized_count"`
}

// Coverage computes the coverage of m against a taxonomy of coreTotal
// categories. Presence counts, volume does not.
func Coverage(m *Market, coreTotal int) (CoverageRecord, error) {
	if coreTotal <= 0 {
		return CoverageRecord{}, config.NewValidationError("taxonomy",
			[]string{"taxonomy must declare at least one category"})
	}

	covered := 0
	for _, n := range m.Categories {
		if n > 0 {
			covered++
		}
	}

	return CoverageRecord{
		Market:             m.Key,
		Total:              m.Total,
		CorePercent:        roundPercent(covered, coreTotal),
		CoreCovered:        covered,
		CoreTotal:          coreTotal,
		OtherCategoryCount: len(m.Other),
		UncategorizedCount: m.Uncategorized,
	}, nil
}

// CoverageAll computes coverage for every market in r, in Sorted order.
func CoverageAll(r *Result, coreTotal int) ([]CoverageRecord, error) {
	markets := r.Sorted()
	out := make([]CoverageRecord, 0, len(markets))
	for _, m := range markets {
		rec, err := Coverage(m, coreTotal)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// roundPercent returns round(100*num/den) with halves rounded up, using
// integer arithmetic so 50% boundaries are exact.
func roundPercent(num, den int) int {
	return (200*num + den) / (2 * den)
}
