package leadsource

import (
	"context"
	"fmt"
	"sync"

	"github.com/sells-group/leadmap/internal/model"
)

// memSource serves a fixed, already ordered dataset.
type memSource struct {
	mu       sync.Mutex
	leads    []model.Lead
	calls    int
	failAt   int   // 1-based call that fails; 0 = never
	failErr  error // error returned at failAt
	failOnce bool  // only fail the first time failAt is hit
	failed   bool
	onCall   func(call int)
}

func newMemSource(n int) *memSource {
	leads := make([]model.Lead, n)
	for i := range leads {
		leads[i] = model.Lead{
			ID:          fmt.Sprintf("lead-%04d", i),
			City:        "Austin",
			State:       "TX",
			ServiceType: "Plumber",
		}
	}
	return &memSource{leads: leads}
}

func (m *memSource) FetchPage(ctx context.Context, _ Filter, offset, limit int) (Page, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	if m.onCall != nil {
		m.onCall(call)
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if m.failAt == call && !(m.failOnce && m.failed) {
		m.failed = true
		return Page{}, m.failErr
	}
	if offset >= len(m.leads) {
		return Page{}, nil
	}
	end := min(offset+limit, len(m.leads))
	rows := m.leads[offset:end]
	return Page{Leads: append([]model.Lead(nil), rows...), Raw: len(rows)}, nil
}
