package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadmap/internal/leadsource"
	"github.com/sells-group/leadmap/internal/report"
)

type filterFlags struct {
	city        string
	state       string
	category    string
	categorized bool
	order       string
}

func addFilterFlags(cmd *cobra.Command, f *filterFlags) {
	cmd.Flags().StringVar(&f.city, "city", "", "only leads in this city")
	cmd.Flags().StringVar(&f.state, "state", "", "only leads in this state (two-letter code)")
	cmd.Flags().StringVar(&f.category, "category", "", "only leads with this raw service type")
	cmd.Flags().BoolVar(&f.categorized, "categorized", false, "skip leads without a service type")
	cmd.Flags().StringVar(&f.order, "order", "", "page order: created_at (default) or id")
}

func (f *filterFlags) filter() leadsource.Filter {
	return leadsource.Filter{
		City:            f.city,
		State:           f.state,
		Category:        f.category,
		CategoryNotNull: f.categorized,
		OrderBy:         f.order,
	}
}

type outputFlags struct {
	format string
	output string
}

func addOutputFlags(cmd *cobra.Command, o *outputFlags) {
	cmd.Flags().StringVar(&o.format, "format", "", "output format: table, csv, markdown or xlsx (default inferred from --output)")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "write to this file instead of stdout")
}

// resolve picks the output format. An explicit --format wins over the
// --output extension.
func (o *outputFlags) resolve() (report.Format, error) {
	if o.format == "" && o.output != "" {
		return report.FormatFromPath(o.output, report.FormatTable), nil
	}
	return report.ParseFormat(o.format)
}

func (o *outputFlags) write(tables []report.Table) error {
	f, err := o.resolve()
	if err != nil {
		return err
	}
	if o.output == "" {
		return report.Write(os.Stdout, f, tables)
	}
	if err := report.WriteFile(o.output, f, tables); err != nil {
		return err
	}
	zap.L().Info("report written", zap.String("path", o.output), zap.String("format", string(f)))
	fmt.Fprintf(os.Stderr, "Wrote %s\n", o.output)
	return nil
}
