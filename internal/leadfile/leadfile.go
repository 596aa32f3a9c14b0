// Package leadfile imports scraped leads from CSV and XLSX exports.
package leadfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadmap/internal/model"
)

// Options configures a file import.
type Options struct {
	// SheetName selects an XLSX sheet; the first sheet is used when empty.
	SheetName string
	// Delimiter overrides the CSV field separator.
	Delimiter rune
}

// Stats tallies one import.
type Stats struct {
	Rows      int `json:"rows"`
	Leads     int `json:"leads"`
	Blank     int `json:"blank"`
	Malformed int `json:"malformed"`
}

// HeaderError reports a header row lacking required columns.
type HeaderError struct {
	Missing []string
	Header  []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("leadfile: header is missing %s (found %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Header, ", "))
}

// Read streams the leads of the CSV or XLSX file at path to fn. The format is
// chosen by extension. An error from fn stops the import.
func Read(ctx context.Context, path string, opts Options, fn func(model.Lead) error) (Stats, error) {
	var (
		rows <-chan []string
		errs <-chan error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return Stats{}, eris.Wrap(err, "leadfile: open")
		}
		defer f.Close() //nolint:errcheck
		if opts.Delimiter == 0 && strings.EqualFold(filepath.Ext(path), ".tsv") {
			opts.Delimiter = '\t'
		}
		rows, errs = streamCSV(ctx, f, opts.Delimiter)
	case ".xlsx":
		rows, errs = streamXLSX(ctx, path, opts.SheetName)
	default:
		return Stats{}, eris.Errorf("leadfile: unsupported file type %q", filepath.Ext(path))
	}

	stats, err := consume(ctx, rows, fn)
	if err != nil {
		return stats, err
	}
	if err := <-errs; err != nil {
		return stats, err
	}

	zap.L().Info("leadfile: read complete",
		zap.String("path", path),
		zap.Int("rows", stats.Rows),
		zap.Int("leads", stats.Leads),
		zap.Int("blank", stats.Blank),
		zap.Int("malformed", stats.Malformed),
	)
	return stats, nil
}

// ReadAll buffers every lead in the file.
func ReadAll(ctx context.Context, path string, opts Options) ([]model.Lead, Stats, error) {
	var leads []model.Lead
	stats, err := Read(ctx, path, opts, func(l model.Lead) error {
		leads = append(leads, l)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return leads, stats, nil
}

// consume maps the header row then converts data rows. It drains rows on
// early return so the producer goroutine can exit.
func consume(ctx context.Context, rows <-chan []string, fn func(model.Lead) error) (stats Stats, err error) {
	defer func() {
		if err != nil {
			for range rows {
			}
		}
	}()

	header, ok := <-rows
	if !ok {
		return stats, nil
	}
	cols, err := newColumnMap(header)
	if err != nil {
		return stats, err
	}

	for row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "leadfile: context cancelled")
		}
		stats.Rows++
		l, ok, malformed := cols.lead(row)
		if !ok {
			stats.Blank++
			continue
		}
		if malformed {
			stats.Malformed++
		}
		stats.Leads++
		if err := fn(l); err != nil {
			return stats, err
		}
	}
	return stats, nil
}
