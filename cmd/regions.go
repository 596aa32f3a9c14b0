package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/leadmap/internal/analysis"
	"github.com/sells-group/leadmap/internal/report"
)

var (
	regionsFilter filterFlags
	regionsOutput outputFlags
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Roll markets up into regions and list missing watched categories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("gap-percent") {
			cfg.Analysis.RegionGapPercent, _ = cmd.Flags().GetFloat64("gap-percent")
		}

		r, _, err := runAnalysis(cmd.Context(), analysis.Request{
			Kind:   "regions",
			Filter: regionsFilter.filter(),
		})
		if err != nil {
			return err
		}
		return regionsOutput.write([]report.Table{report.RegionsTable(r.RegionSummaries)})
	},
}

func init() {
	addFilterFlags(regionsCmd, &regionsFilter)
	addOutputFlags(regionsCmd, &regionsOutput)
	regionsCmd.Flags().Float64("gap-percent", 0, "share below which a watched category counts as missing (default analysis.region_gap_percent)")
	rootCmd.AddCommand(regionsCmd)
}
