package store

import (
	"fmt"
	"strings"

	"github.com/sells-group/leadmap/internal/leadsource"
)

// placeholder renders the n-th (1-based) bind parameter.
type placeholder func(n int) string

func dollar(n int) string { return fmt.Sprintf("$%d", n) }
func question(int) string { return "?" }

// leadPageQuery builds a filtered, stably ordered LIMIT/OFFSET read over
// the leads table. Order columns come from the filter's whitelist.
func leadPageQuery(f leadsource.Filter, offset, limit int, ph placeholder) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(leadColumns, ", "))
	b.WriteString(" FROM leads WHERE 1=1")

	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		fmt.Fprintf(&b, " AND %s = %s", clause, ph(len(args)))
	}
	if f.City != "" {
		add("city", f.City)
	}
	if f.State != "" {
		add("state", f.State)
	}
	if f.Category != "" {
		add("service_type", f.Category)
	} else if f.CategoryNotNull {
		b.WriteString(" AND service_type IS NOT NULL AND service_type <> ''")
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(f.OrderColumns(), ", "))

	args = append(args, limit)
	fmt.Fprintf(&b, " LIMIT %s", ph(len(args)))
	args = append(args, offset)
	fmt.Fprintf(&b, " OFFSET %s", ph(len(args)))

	return b.String(), args
}
