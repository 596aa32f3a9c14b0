package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadmap/internal/leadfile"
	"github.com/sells-group/leadmap/internal/model"
)

var (
	importSheet string
	importBatch int
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import leads from a CSV, TSV or XLSX file into the lead store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		stats, written, err := importLeads(ctx, args[0], leadfile.Options{SheetName: importSheet}, e.Writer, importBatch)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.Int("rows", stats.Rows),
			zap.Int64("written", written),
		)
		fmt.Fprintf(os.Stdout, "Imported %d leads (%d rows, %d blank, %d malformed)\n",
			written, stats.Rows, stats.Blank, stats.Malformed)
		return nil
	},
}

// importLeads streams path into w in batches of batch leads.
func importLeads(ctx context.Context, path string, opts leadfile.Options, w leadWriter, batch int) (leadfile.Stats, int64, error) {
	if batch <= 0 {
		batch = 500
	}

	var (
		buf     = make([]model.Lead, 0, batch)
		written int64
	)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		n, err := w.UpsertLeads(ctx, buf)
		if err != nil {
			return eris.Wrap(err, "import: upsert leads")
		}
		written += n
		buf = buf[:0]
		return nil
	}

	stats, err := leadfile.Read(ctx, path, opts, func(l model.Lead) error {
		buf = append(buf, l)
		if len(buf) >= batch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return stats, written, err
	}
	if err := flush(); err != nil {
		return stats, written, err
	}
	return stats, written, nil
}

func init() {
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "worksheet to read from an XLSX file (default first sheet)")
	importCmd.Flags().IntVar(&importBatch, "batch", 500, "leads per upsert")
	rootCmd.AddCommand(importCmd)
}
