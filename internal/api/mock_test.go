package api

import (
	"context"
	"sync"

	"github.com/sells-group/leadmap/internal/analysis"
	"github.com/sells-group/leadmap/internal/leadsource"
	"github.com/sells-group/leadmap/internal/model"
	"github.com/sells-group/leadmap/internal/store"
)

// memSource serves a fixed slice of leads.
type memSource struct {
	leads []model.Lead
	err   error
}

func (m *memSource) FetchPage(_ context.Context, _ leadsource.Filter, offset, limit int) (leadsource.Page, error) {
	if m.err != nil {
		return leadsource.Page{}, m.err
	}
	if offset >= len(m.leads) {
		return leadsource.Page{}, nil
	}
	end := min(offset+limit, len(m.leads))
	return leadsource.Page{Leads: m.leads[offset:end], Raw: end - offset}, nil
}

// stubAnalyzer returns a canned error and records requests.
type stubAnalyzer struct {
	mu   sync.Mutex
	opts analysis.Options
	err  error
	reqs []analysis.Request
}

func (s *stubAnalyzer) Run(_ context.Context, req analysis.Request) (*analysis.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	return nil, s.err
}

func (s *stubAnalyzer) Options() analysis.Options { return s.opts }

type fakeRuns struct {
	runs   []model.Run
	err    error
	filter store.RunFilter
}

func (f *fakeRuns) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	f.filter = filter
	return f.runs, f.err
}
