// Package model defines the lead records and analysis run types shared across packages.
package model

import (
	"strings"
	"time"
)

// Lead is a single scraped business listing. Empty strings mean the value
// was null in the source row.
type Lead struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	ServiceType string    `json:"service_type"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	Website     string    `json:"website,omitempty"`
	Address     string    `json:"address,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	ReviewCount *int      `json:"review_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasLocation reports whether both city and state are present.
func (l Lead) HasLocation() bool {
	return strings.TrimSpace(l.City) != "" && strings.TrimSpace(l.State) != ""
}

// Deref returns the string behind p, or "" when p is nil. Store scanners use
// it to fold NULL columns into the empty-string convention.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
