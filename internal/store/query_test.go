package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadmap/internal/leadsource"
)

func TestLeadPageQuery(t *testing.T) {
	tests := []struct {
		name      string
		filter    leadsource.Filter
		ph        placeholder
		wantWhere string
		wantOrder string
		wantArgs  []any
	}{
		{
			name:      "all",
			ph:        dollar,
			wantWhere: "WHERE 1=1 ORDER BY",
			wantOrder: "ORDER BY created_at, id LIMIT $1 OFFSET $2",
			wantArgs:  []any{1000, 0},
		},
		{
			name:      "market",
			filter:    leadsource.Filter{City: "Austin", State: "TX", OrderBy: leadsource.OrderID},
			ph:        dollar,
			wantWhere: "WHERE 1=1 AND city = $1 AND state = $2 ORDER BY",
			wantOrder: "ORDER BY id LIMIT $3 OFFSET $4",
			wantArgs:  []any{"Austin", "TX", 1000, 0},
		},
		{
			name:      "categorized sqlite",
			filter:    leadsource.Filter{CategoryNotNull: true},
			ph:        question,
			wantWhere: "service_type IS NOT NULL AND service_type <> ''",
			wantOrder: "ORDER BY created_at, id LIMIT ? OFFSET ?",
			wantArgs:  []any{1000, 0},
		},
		{
			name:      "category wins over not null",
			filter:    leadsource.Filter{Category: "Plumbers", CategoryNotNull: true},
			ph:        question,
			wantWhere: "AND service_type = ? ORDER BY",
			wantOrder: "LIMIT ? OFFSET ?",
			wantArgs:  []any{"Plumbers", 1000, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := leadPageQuery(tt.filter, 0, 1000, tt.ph)
			assert.Contains(t, q, "SELECT id, name, city, state, service_type")
			assert.Contains(t, q, tt.wantWhere)
			assert.Contains(t, q, tt.wantOrder)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestLeadPageQuery_NotNullNotAppliedWithCategory(t *testing.T) {
	q, _ := leadPageQuery(leadsource.Filter{Category: "Plumbers", CategoryNotNull: true}, 0, 10, dollar)
	assert.NotContains(t, q, "IS NOT NULL")
}
