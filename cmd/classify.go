package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadmap/internal/analysis"
	"github.com/sells-group/leadmap/internal/classify"
	"github.com/sells-group/leadmap/pkg/anthropic"
)

var (
	classifyFilter filterFlags
	classifyLimit  int
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Ask Claude whether the uncatalogued service types are real trades",
	Long: "Collects the service types outside the taxonomy, most common first, and asks the " +
		"model whether each is a legitimate home-services category and which taxonomy entry it belongs to.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("anthropic"); err != nil {
			return err
		}

		r, opts, err := runAnalysis(ctx, analysis.Request{
			Kind:   "classify",
			Filter: classifyFilter.filter(),
		})
		if err != nil {
			return err
		}

		cands := classify.Candidates(r.Markets, classifyLimit)
		if len(cands) == 0 {
			fmt.Fprintln(os.Stderr, "Every service type is in the taxonomy.")
			return nil
		}

		c := classify.New(anthropic.NewClient(cfg.Anthropic.Key), classify.Options{
			Model:       cfg.Anthropic.Model,
			Concurrency: cfg.Anthropic.Concurrency,
			RateLimit:   cfg.Anthropic.RateLimit,
			RetryCount:  cfg.Ingest.RetryCount,
		}, opts.Taxonomy.Names())

		verdicts, usage, err := c.Classify(ctx, cands)
		if err != nil {
			return err
		}
		formatVerdicts(os.Stdout, verdicts)
		fmt.Fprintf(os.Stderr, "Tokens: %d in, %d out\n", usage.InputTokens, usage.OutputTokens)
		return nil
	},
}

// formatVerdicts writes one row per classified category.
func formatVerdicts(out io.Writer, verdicts []classify.Verdict) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CATEGORY\tLEADS\tMARKETS\tLEGIT\tCONF\tSUGGESTED\tREASON")
	_, _ = fmt.Fprintln(w, "--------\t-----\t-------\t-----\t----\t---------\t------")

	for _, v := range verdicts {
		legit := "no"
		if v.Legitimate {
			legit = "yes"
		}
		reason := v.Reason
		if v.Err != "" {
			legit = "error"
			reason = v.Err
		}
		if len(reason) > 60 {
			reason = reason[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			v.Category,
			v.Leads,
			v.Markets,
			legit,
			strconv.FormatFloat(v.Confidence, 'f', 2, 64),
			v.Suggested,
			reason,
		)
	}
	_ = w.Flush()
}

func init() {
	addFilterFlags(classifyCmd, &classifyFilter)
	classifyCmd.Flags().IntVar(&classifyLimit, "limit", 25, "classify at most this many categories (0 = all)")
	rootCmd.AddCommand(classifyCmd)
}
