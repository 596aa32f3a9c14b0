package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
)

// Format is an output encoding.
type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatXLSX     Format = "xlsx"
)

// ParseFormat validates a --format value. An empty value means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatCSV, FormatMarkdown, FormatXLSX:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", eris.Errorf("report: unknown format %q", s)
	}
}

// FormatFromPath infers the format from a file extension, falling back to
// fallback when the extension is not recognized.
func FormatFromPath(path string, fallback Format) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX
	case ".csv":
		return FormatCSV
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt":
		return FormatTable
	default:
		return fallback
	}
}

// Write encodes tables to w. XLSX needs a file; use WriteFile for it.
func Write(w io.Writer, f Format, tables []Table) error {
	switch f {
	case FormatTable, "":
		return writeText(w, tables)
	case FormatCSV:
		return writeCSV(w, tables)
	case FormatMarkdown:
		return writeMarkdown(w, tables)
	case FormatXLSX:
		return eris.New("report: xlsx output requires --output")
	default:
		return eris.Errorf("report: unknown format %q", f)
	}
}

// WriteFile writes tables to path in format f.
func WriteFile(path string, f Format, tables []Table) error {
	if f == FormatXLSX {
		return WriteXLSX(path, tables)
	}
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: create file")
	}
	if err := Write(out, f, tables); err != nil {
		_ = out.Close()
		return err
	}
	return eris.Wrap(out.Close(), "report: close file")
}

func writeText(out io.Writer, tables []Table) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, t := range tables {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "== %s ==\n", t.Title)
		_, _ = fmt.Fprintln(w, strings.ToUpper(strings.Join(t.Header, "\t")))
		for _, row := range t.Rows {
			_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		if len(t.Rows) == 0 {
			_, _ = fmt.Fprintln(w, "(none)")
		}
	}
	return eris.Wrap(w.Flush(), "report: flush table")
}

// writeCSV emits one block per table: a "# Title" line, the header and the
// rows, with a blank line between blocks.
func writeCSV(out io.Writer, tables []Table) error {
	w := csv.NewWriter(out)
	for i, t := range tables {
		if len(tables) > 1 {
			if i > 0 {
				if err := w.Write([]string{}); err != nil {
					return eris.Wrap(err, "report: write csv")
				}
			}
			if err := w.Write([]string{"# " + t.Title}); err != nil {
				return eris.Wrap(err, "report: write csv")
			}
		}
		if err := w.Write(t.Header); err != nil {
			return eris.Wrap(err, "report: write csv header")
		}
		if err := w.WriteAll(t.Rows); err != nil {
			return eris.Wrap(err, "report: write csv rows")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "report: flush csv")
}

func writeMarkdown(out io.Writer, tables []Table) error {
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s\n\n", t.Title)
		if len(t.Rows) == 0 {
			b.WriteString("_None._\n")
			continue
		}
		writeMarkdownRow(&b, t.Header)
		sep := make([]string, len(t.Header))
		for j := range sep {
			sep[j] = "---"
		}
		writeMarkdownRow(&b, sep)
		for _, row := range t.Rows {
			writeMarkdownRow(&b, row)
		}
	}
	_, err := io.WriteString(out, b.String())
	return eris.Wrap(err, "report: write markdown")
}

func writeMarkdownRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(strings.ReplaceAll(c, "|", `\|`))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}
