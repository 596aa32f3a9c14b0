package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/leadmap/internal/analysis"
	"github.com/sells-group/leadmap/internal/report"
)

var (
	coverageFilter filterFlags
	coverageOutput outputFlags
	coverageSave   bool
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show how much of the service taxonomy each market covers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		r, _, err := runAnalysis(cmd.Context(), analysis.Request{
			Kind:         "coverage",
			Filter:       coverageFilter.filter(),
			SaveCoverage: coverageSave,
		})
		if err != nil {
			return err
		}
		return coverageOutput.write([]report.Table{report.CoverageTable(r.Coverage)})
	},
}

func init() {
	addFilterFlags(coverageCmd, &coverageFilter)
	addOutputFlags(coverageCmd, &coverageOutput)
	coverageCmd.Flags().BoolVar(&coverageSave, "save", false, "store the coverage snapshot with the run record")
	rootCmd.AddCommand(coverageCmd)
}
