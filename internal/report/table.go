// Package report renders analysis results as text tables, CSV, Markdown or
// XLSX workbooks.
package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadmap/internal/analysis"
	"github.com/sells-group/leadmap/internal/market"
	"github.com/sells-group/leadmap/internal/opportunity"
	"github.com/sells-group/leadmap/internal/region"
)

// Table is one titled section of a report.
type Table struct {
	Title  string
	Header []string
	Rows   [][]string
}

// GroupBy selects how opportunities are split into sections.
type GroupBy string

const (
	GroupNone     GroupBy = ""
	GroupCategory GroupBy = "category"
	GroupRegion   GroupBy = "region"
)

// ParseGroupBy validates a --by value.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(s))); g {
	case GroupNone, GroupCategory, GroupRegion:
		return g, nil
	default:
		return "", eris.Errorf("report: unknown grouping %q (want category or region)", s)
	}
}

// MarketsTable lists the largest markets.
func MarketsTable(ranks []market.Rank) Table {
	t := Table{
		Title:  "Top Markets",
		Header: []string{"Rank", "City", "State", "Leads", "Categories"},
	}
	for i, r := range ranks {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(i + 1), r.Key.City, r.Key.State,
			strconv.Itoa(r.Total), strconv.Itoa(r.DistinctCategories),
		})
	}
	return t
}

// CoverageTable lists taxonomy coverage per market.
func CoverageTable(records []market.CoverageRecord) Table {
	t := Table{
		Title:  "Coverage",
		Header: []string{"City", "State", "Leads", "Core %", "Core Covered", "Other Categories", "Uncategorized"},
	}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.Market.City, r.Market.State, strconv.Itoa(r.Total),
			strconv.Itoa(r.CorePercent),
			fmt.Sprintf("%d/%d", r.CoreCovered, r.CoreTotal),
			strconv.Itoa(r.OtherCategoryCount), strconv.Itoa(r.UncategorizedCount),
		})
	}
	return t
}

var opportunityHeader = []string{"City", "State", "Category", "Current", "Market Leads", "Coverage %", "Score", "Tier"}

func opportunityRow(r opportunity.Record) []string {
	category := r.Category
	if r.Hot {
		category += " *"
	}
	return []string{
		r.Market.City, r.Market.State, category, strconv.Itoa(r.Current),
		strconv.Itoa(r.MarketTotal), formatPct(r.CoveragePct),
		strconv.FormatFloat(r.Score, 'f', 1, 64), string(r.Tier),
	}
}

// OpportunityTables renders ranked opportunities, either as one table or one
// table per category or region. Sections are ordered by their best score and
// rows keep rank order.
func OpportunityTables(records []opportunity.Record, by GroupBy, regions region.Table) []Table {
	if by == GroupNone {
		t := Table{Title: "Opportunities", Header: opportunityHeader}
		for _, r := range records {
			t.Rows = append(t.Rows, opportunityRow(r))
		}
		return []Table{t}
	}

	var groups map[string][]opportunity.Record
	if by == GroupRegion {
		groups = region.GroupByRegion(records, regions)
	} else {
		groups = opportunity.GroupByCategory(records)
	}

	// records arrive ranked, so first appearance is best score.
	var order []string
	for _, r := range records {
		k := r.Category
		if by == GroupRegion {
			k = regions.Lookup(r.Market.State)
		}
		if !slices.Contains(order, k) {
			order = append(order, k)
		}
	}

	out := make([]Table, 0, len(order))
	for _, k := range order {
		t := Table{Title: "Opportunities: " + k, Header: opportunityHeader}
		for _, r := range groups[k] {
			t.Rows = append(t.Rows, opportunityRow(r))
		}
		out = append(out, t)
	}
	return out
}

// RegionsTable lists region totals with the watched categories missing from
// each region.
func RegionsTable(summaries []region.Summary) Table {
	t := Table{
		Title:  "Regions",
		Header: []string{"Region", "Leads", "Markets", "States", "Missing Categories"},
	}
	for _, s := range summaries {
		missing := make([]string, len(s.Missing))
		for i, g := range s.Missing {
			missing[i] = fmt.Sprintf("%s (%s%%)", g.Category, formatPct(g.SharePct))
		}
		t.Rows = append(t.Rows, []string{
			s.Name, strconv.Itoa(s.Total), strconv.Itoa(s.MarketCount),
			strings.Join(s.States, " "), strings.Join(missing, ", "),
		})
	}
	return t
}

// SummaryTable describes the run itself.
func SummaryTable(r *analysis.Report) Table {
	s := r.Summary
	return Table{
		Title:  "Run Summary",
		Header: []string{"Field", "Value"},
		Rows: [][]string{
			{"Run", r.RunID},
			{"Filter", r.Filter.String()},
			{"Taxonomy", r.TaxonomyVersion},
			{"Core categories", strconv.Itoa(r.CoreTotal)},
			{"Pages", strconv.Itoa(s.Pages)},
			{"Leads", strconv.Itoa(s.Leads)},
			{"Skipped (no location)", strconv.Itoa(s.SkippedNoLocation)},
			{"Malformed rows", strconv.Itoa(s.Malformed)},
			{"Markets", strconv.Itoa(s.Markets)},
			{"Opportunities", strconv.Itoa(s.Opportunities)},
			{"Duration (ms)", strconv.FormatInt(s.DurationMs, 10)},
		},
	}
}

// Full renders every section of a report.
func Full(r *analysis.Report, by GroupBy, regions region.Table) []Table {
	tables := []Table{
		SummaryTable(r),
		MarketsTable(r.TopMarkets),
		CoverageTable(r.Coverage),
	}
	tables = append(tables, OpportunityTables(r.Opportunities, by, regions)...)
	return append(tables, RegionsTable(r.RegionSummaries))
}

func formatPct(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}
