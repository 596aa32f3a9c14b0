package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/leadmap/internal/analysis"
	"github.com/sells-group/leadmap/internal/report"
)

var (
	oppFilter filterFlags
	oppOutput outputFlags
	oppBy     string
)

var opportunitiesCmd = &cobra.Command{
	Use:     "opportunities",
	Aliases: []string{"opps"},
	Short:   "Rank large markets where watched categories are thin",
	RunE: func(cmd *cobra.Command, _ []string) error {
		by, err := report.ParseGroupBy(oppBy)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("min-market-size") {
			cfg.Analysis.MinMarketSize, _ = flags.GetInt("min-market-size")
		}
		if flags.Changed("max-coverage") {
			cfg.Analysis.MaxCoveragePercent, _ = flags.GetFloat64("max-coverage")
		}
		if flags.Changed("prioritize") {
			cfg.Analysis.PrioritizeEmerging, _ = flags.GetBool("prioritize")
		}

		r, used, err := runAnalysis(cmd.Context(), analysis.Request{
			Kind:   "opportunities",
			Filter: oppFilter.filter(),
		})
		if err != nil {
			return err
		}
		return oppOutput.write(report.OpportunityTables(r.Opportunities, by, used.Regions))
	},
}

func init() {
	addFilterFlags(opportunitiesCmd, &oppFilter)
	addOutputFlags(opportunitiesCmd, &oppOutput)
	opportunitiesCmd.Flags().Int("min-market-size", 0, "skip markets with fewer leads (default analysis.min_market_size)")
	opportunitiesCmd.Flags().Float64("max-coverage", 0, "only report categories below this percent of the market (default analysis.max_coverage_percent)")
	opportunitiesCmd.Flags().Bool("prioritize", false, "rank hot categories first")
	opportunitiesCmd.Flags().StringVar(&oppBy, "by", "", "group output by category or region")
	rootCmd.AddCommand(opportunitiesCmd)
}
