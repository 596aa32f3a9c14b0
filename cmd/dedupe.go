package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadmap/internal/dedupe"
)

var (
	dedupeFilter filterFlags
	dedupeApply  bool
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find duplicate leads by phone and similar name",
	Long: "Groups leads that share a phone number, or whose names are near-identical within " +
		"one market, and keeps the oldest record of each group. Nothing is deleted without --apply.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		opts := dedupe.Options{
			NameSimilarity: cfg.Dedupe.NameSimilarity,
			FranchiseNames: cfg.Dedupe.FranchiseNames,
		}
		if err := opts.Validate(); err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		leads, _, err := e.Fetcher.All(ctx, dedupeFilter.filter())
		if err != nil {
			return eris.Wrap(err, "dedupe: fetch leads")
		}

		res, err := dedupe.Find(leads, opts)
		if err != nil {
			return err
		}
		if len(res.Groups) == 0 {
			fmt.Fprintln(os.Stderr, "No duplicates found.")
			return nil
		}
		formatDedupeGroups(os.Stdout, res)

		if !dedupeApply {
			fmt.Fprintf(os.Stderr, "%d duplicates in %d groups; rerun with --apply to delete them.\n",
				res.Duplicates(), len(res.Groups))
			return nil
		}

		deleted, err := e.Writer.DeleteLeads(ctx, res.DuplicateIDs())
		if err != nil {
			return eris.Wrap(err, "dedupe: delete duplicates")
		}
		zap.L().Info("dedupe: duplicates deleted", zap.Int64("deleted", deleted), zap.Int("groups", len(res.Groups)))
		fmt.Fprintf(os.Stdout, "Deleted %d duplicate leads.\n", deleted)
		return nil
	},
}

// formatDedupeGroups writes one line per duplicate with the record it folds into.
func formatDedupeGroups(out io.Writer, res dedupe.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEEP\tDUPLICATE\tNAME\tPHONE\tMARKET\tMATCHED")
	_, _ = fmt.Fprintln(w, "----\t---------\t----\t-----\t------\t-------")

	for _, g := range res.Groups {
		reasons := make([]string, len(g.Reasons))
		for i, r := range g.Reasons {
			reasons[i] = string(r)
		}
		for _, d := range g.Duplicates {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s, %s\t%s\n",
				truncateID(g.Keep.ID),
				truncateID(d.ID),
				d.Name,
				d.Phone,
				d.City, d.State,
				strings.Join(reasons, "+"),
			)
		}
	}
	_ = w.Flush()
}

func init() {
	addFilterFlags(dedupeCmd, &dedupeFilter)
	dedupeCmd.Flags().BoolVar(&dedupeApply, "apply", false, "delete the duplicates")
	rootCmd.AddCommand(dedupeCmd)
}
