// Package analysis runs the coverage, opportunity and regional analyses over
// one fresh snapshot of leads.
package analysis

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sells-group/leadmap/internal/config"
	"github.com/sells-group/leadmap/internal/opportunity"
	"github.com/sells-group/leadmap/internal/region"
	"github.com/sells-group/leadmap/internal/taxonomy"
)

// Options configures an Engine.
type Options struct {
	Taxonomy         *taxonomy.Taxonomy
	Normalize        bool
	Params           opportunity.Params
	Watched          []opportunity.Watched
	Regions          region.Table
	RegionGapPercent float64
	TopN             int
}

// OptionsFromConfig builds Options from the analysis config section,
// loading the taxonomy file when one is configured.
func OptionsFromConfig(cfg config.AnalysisConfig) (Options, error) {
	tax, err := taxonomy.LoadFile(cfg.TaxonomyPath)
	if err != nil {
		return Options{}, err
	}

	watched := make([]opportunity.Watched, len(cfg.Watched))
	for i, w := range cfg.Watched {
		watched[i] = opportunity.Watched{Name: w.Name, GrowthWeight: w.GrowthWeight}
	}

	regions := region.DefaultTable()
	if len(cfg.Regions) > 0 {
		regions = region.NewTable(cfg.Regions)
	}

	return Options{
		Taxonomy:  tax,
		Normalize: cfg.NormalizeMarkets,
		Params: opportunity.Params{
			MinMarketSize:      cfg.MinMarketSize,
			MaxCoveragePercent: cfg.MaxCoveragePercent,
			VeryLowPercent:     cfg.VeryLowPercent,
			LowPercent:         cfg.LowPercent,
			PrioritizeEmerging: cfg.PrioritizeEmerging,
			Hot:                cfg.Hot,
		},
		Watched:          watched,
		Regions:          regions,
		RegionGapPercent: cfg.RegionGapPercent,
		TopN:             cfg.TopN,
	}, nil
}

// Validate checks every option and rewrites watched names to their
// canonical taxonomy spelling. It runs before any lead is fetched.
func (o *Options) Validate() error {
	var problems []string
	if o.Taxonomy == nil {
		problems = append(problems, "taxonomy is required")
	} else {
		problems = appendProblems(problems, o.Taxonomy.Validate())
	}
	problems = appendProblems(problems, o.Params.Validate())
	if err := opportunity.ValidateWatched(o.Watched); err != nil {
		problems = appendProblems(problems, err)
	} else if o.Taxonomy != nil {
		o.Watched = slices.Clone(o.Watched)
		for i, w := range o.Watched {
			canonical, ok := o.Taxonomy.Lookup(w.Name)
			if !ok {
				problems = append(problems, fmt.Sprintf("watched category %q is not in the taxonomy", w.Name))
				continue
			}
			o.Watched[i].Name = canonical
		}
	}
	if !(o.RegionGapPercent >= 0 && o.RegionGapPercent <= 100) {
		problems = append(problems, "region_gap_percent must be between 0 and 100")
	}
	if o.TopN < 0 {
		problems = append(problems, "top_n must be >= 0")
	}
	if o.Regions == nil {
		o.Regions = region.DefaultTable()
	}
	return config.NewValidationError("analysis", problems)
}

func appendProblems(problems []string, err error) []string {
	var ve *config.ValidationError
	if errors.As(err, &ve) {
		return append(problems, ve.Problems...)
	}
	if err != nil {
		return append(problems, err.Error())
	}
	return problems
}
