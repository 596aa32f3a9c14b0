package report

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// WriteXLSX saves tables as a workbook, one sheet per table.
func WriteXLSX(path string, tables []Table) error {
	f := xlsx.NewFile()
	used := make(map[string]bool, len(tables))
	for _, t := range tables {
		name := uniqueSheetName(t.Title, used)
		sheet, err := f.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %q", name)
		}
		addRow(sheet, t.Header)
		for _, r := range t.Rows {
			addRow(sheet, r)
		}
	}
	if len(tables) == 0 {
		if _, err := f.AddSheet("Report"); err != nil {
			return eris.Wrap(err, "report: add sheet")
		}
	}
	return eris.Wrap(f.Save(path), "report: save xlsx")
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

var sheetNameReplacer = strings.NewReplacer(
	":", " ", `\`, " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")",
)

// uniqueSheetName strips characters Excel rejects, truncates to the length
// limit and suffixes a counter on collisions.
func uniqueSheetName(title string, used map[string]bool) string {
	base := strings.TrimSpace(sheetNameReplacer.Replace(title))
	if base == "" {
		base = "Sheet"
	}
	base = truncate(base, maxSheetName)
	name := base
	for i := 2; used[strings.ToLower(name)]; i++ {
		suffix := " " + strconv.Itoa(i)
		name = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
