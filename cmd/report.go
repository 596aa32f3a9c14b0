package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/leadmap/internal/analysis"
	"github.com/sells-group/leadmap/internal/report"
)

var (
	reportFilter filterFlags
	reportOutput outputFlags
	reportBy     string
	reportSave   bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write every analysis section to one report",
	Long: "Runs one analysis and writes the run summary, top markets, coverage, " +
		"opportunities and regions. Use --output report.xlsx for a workbook with one sheet per section.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		by, err := report.ParseGroupBy(reportBy)
		if err != nil {
			return err
		}

		r, opts, err := runAnalysis(cmd.Context(), analysis.Request{
			Kind:         "report",
			Filter:       reportFilter.filter(),
			SaveCoverage: reportSave,
		})
		if err != nil {
			return err
		}
		return reportOutput.write(report.Full(r, by, opts.Regions))
	},
}

func init() {
	addFilterFlags(reportCmd, &reportFilter)
	addOutputFlags(reportCmd, &reportOutput)
	reportCmd.Flags().StringVar(&reportBy, "by", "", "group opportunities by category or region")
	reportCmd.Flags().BoolVar(&reportSave, "save", false, "store the coverage snapshot with the run record")
	rootCmd.AddCommand(reportCmd)
}
