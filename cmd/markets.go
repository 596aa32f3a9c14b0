package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/leadmap/internal/analysis"
	"github.com/sells-group/leadmap/internal/report"
)

var (
	marketsFilter filterFlags
	marketsOutput outputFlags
	marketsTop    int
)

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List the largest markets by lead count",
	RunE: func(cmd *cobra.Command, _ []string) error {
		r, _, err := runAnalysis(cmd.Context(), analysis.Request{
			Kind:   "markets",
			Filter: marketsFilter.filter(),
		})
		if err != nil {
			return err
		}

		ranks := r.TopMarkets
		if marketsTop > 0 {
			ranks = r.Markets.TopMarkets(marketsTop)
		}
		return marketsOutput.write([]report.Table{report.MarketsTable(ranks)})
	},
}

func init() {
	addFilterFlags(marketsCmd, &marketsFilter)
	addOutputFlags(marketsCmd, &marketsOutput)
	marketsCmd.Flags().IntVar(&marketsTop, "top", 0, "number of markets to show (default analysis.top_n)")
	rootCmd.AddCommand(marketsCmd)
}
