// Package store persists leads, analysis runs and coverage snapshots in
// Postgres or SQLite.
package store

import (
	"context"

	"github.com/sells-group/leadmap/internal/leadsource"
	"github.com/sells-group/leadmap/internal/market"
	"github.com/sells-group/leadmap/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Kind   string          `json:"kind,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store is a lead backend that also keeps the run log.
type Store interface {
	leadsource.Source

	// Leads
	UpsertLeads(ctx context.Context, leads []model.Lead) (int64, error)
	DeleteLeads(ctx context.Context, ids []string) (int64, error)

	// Runs
	CreateRun(ctx context.Context, kind string, filter leadsource.Filter) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, summary *model.RunSummary, cause error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Coverage snapshots
	SaveCoverage(ctx context.Context, runID string, records []market.CoverageRecord) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// leadColumns is the column order used by every lead read and write.
var leadColumns = []string{
	"id", "name", "city", "state", "service_type", "phone", "email",
	"website", "address", "rating", "review_count", "created_at",
}

var coverageColumns = []string{
	"run_id", "city", "state", "total", "core_percent", "core_covered",
	"core_total", "other_count", "uncategorized",
}

func coverageRows(runID string, records []market.CoverageRecord) [][]any {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{
			runID, r.Market.City, r.Market.State, r.Total, r.CorePercent,
			r.CoreCovered, r.CoreTotal, r.OtherCategoryCount, r.UncategorizedCount,
		}
	}
	return rows
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
