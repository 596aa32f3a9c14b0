// Package leadsource pages lead rows out of a backing store and folds them
// into a consumer one page at a time.
package leadsource

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/leadmap/internal/config"
	"github.com/sells-group/leadmap/internal/model"
)

// Sort keys accepted by Filter.OrderBy. Every order is tie-broken by id.
const (
	OrderCreatedAt = "created_at"
	OrderID        = "id"
)

// Filter restricts which leads are fetched. Empty fields match everything.
type Filter struct {
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	Category        string `json:"category,omitempty"`
	CategoryNotNull bool   `json:"category_not_null,omitempty"`
	OrderBy         string `json:"order_by,omitempty"`
}

// Validate rejects sort keys outside the whitelist.
func (f Filter) Validate() error {
	switch f.OrderBy {
	case "", OrderCreatedAt, OrderID:
		return nil
	}
	return config.NewValidationError("filter", []string{
		fmt.Sprintf("order_by %q must be %s or %s", f.OrderBy, OrderCreatedAt, OrderID),
	})
}

// OrderColumns returns the stable sort columns for f.
func (f Filter) OrderColumns() []string {
	if f.OrderBy == OrderID {
		return []string{OrderID}
	}
	return []string{OrderCreatedAt, OrderID}
}

func (f Filter) String() string {
	var parts []string
	if f.City != "" {
		parts = append(parts, "city="+f.City)
	}
	if f.State != "" {
		parts = append(parts, "state="+f.State)
	}
	if f.Category != "" {
		parts = append(parts, "category="+f.Category)
	}
	if f.CategoryNotNull {
		parts = append(parts, "categorized")
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, ",")
}

// Page is one window of rows. Raw counts every row the backend returned,
// including Malformed rows that could not be decoded into a Lead.
type Page struct {
	Leads     []model.Lead
	Raw       int
	Malformed int
}

// Source is a paged lead backend.
type Source interface {
	FetchPage(ctx context.Context, f Filter, offset, limit int) (Page, error)
}
