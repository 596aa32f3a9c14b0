package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/sells-group/leadmap/internal/leadsource"
	"github.com/sells-group/leadmap/internal/market"
	"github.com/sells-group/leadmap/internal/model"
)

type fakeSource struct {
	leads []model.Lead
	err   error // returned from the second page on
	calls int
}

func (f *fakeSource) FetchPage(_ context.Context, _ leadsource.Filter, offset, limit int) (leadsource.Page, error) {
	f.calls++
	if f.err != nil && f.calls > 1 {
		return leadsource.Page{}, f.err
	}
	if offset >= len(f.leads) {
		return leadsource.Page{}, nil
	}
	end := min(offset+limit, len(f.leads))
	return leadsource.Page{Leads: f.leads[offset:end], Raw: end - offset}, nil
}

type fakeRecorder struct {
	mu        sync.Mutex
	created   []string
	completed map[string]*model.RunSummary
	failed    map[string]error
	failedSum map[string]*model.RunSummary
	coverage  map[string][]market.CoverageRecord
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		completed: map[string]*model.RunSummary{},
		failed:    map[string]error{},
		failedSum: map[string]*model.RunSummary{},
		coverage:  map[string][]market.CoverageRecord{},
	}
}

func (r *fakeRecorder) CreateRun(_ context.Context, kind string, filter leadsource.Filter) (*model.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := fmt.Sprintf("run-%d", len(r.created)+1)
	r.created = append(r.created, id)
	return &model.Run{ID: id, Kind: kind, Filter: filter.String(), Status: model.RunStatusRunning}, nil
}

func (r *fakeRecorder) CompleteRun(_ context.Context, runID string, summary *model.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed[runID] = summary
	return nil
}

func (r *fakeRecorder) FailRun(_ context.Context, runID string, summary *model.RunSummary, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[runID] = cause
	r.failedSum[runID] = summary
	return nil
}

func (r *fakeRecorder) SaveCoverage(_ context.Context, runID string, records []market.CoverageRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coverage[runID] = records
	return int64(len(records)), nil
}
