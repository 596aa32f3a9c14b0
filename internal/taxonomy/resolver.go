package taxonomy

import "strings"

// Resolution is the outcome of resolving one raw category string.
//
// Three shapes are possible: a core match (IsCore, Canonical is the
// canonical name), an "other" category (Canonical is the raw string) and
// uncategorized (Canonical is empty).
type Resolution struct {
	Canonical string `json:"canonical"`
	IsCore    bool   `json:"is_core"`
}

// Uncategorized reports whether the raw input was null or blank.
func (r Resolution) Uncategorized() bool {
	return r.Canonical == "" && !r.IsCore
}

// Resolver maps raw categories to canonical ones. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	names   map[string]string
	aliases map[string]string
	core    []string
}

// NewResolver precomputes lookup tables for t. Canonical names take
// precedence over aliases; among aliases the first declared category wins.
func NewResolver(t *Taxonomy) *Resolver {
	r := &Resolver{
		names:   make(map[string]string, len(t.Categories)),
		aliases: make(map[string]string),
		core:    t.Names(),
	}
	for _, c := range t.Categories {
		key := foldKey(c.Name)
		if _, ok := r.names[key]; !ok {
			r.names[key] = c.Name
		}
	}
	for _, c := range t.Categories {
		for _, a := range c.Aliases {
			key := foldKey(a)
			if key == "" {
				continue
			}
			if _, ok := r.aliases[key]; !ok {
				r.aliases[key] = c.Name
			}
		}
	}
	return r
}

// Resolve maps raw onto the taxonomy. It never fails.
func (r *Resolver) Resolve(raw string) Resolution {
	key := foldKey(raw)
	if key == "" {
		return Resolution{}
	}
	if name, ok := r.names[key]; ok {
		return Resolution{Canonical: name, IsCore: true}
	}
	if name, ok := r.aliases[key]; ok {
		return Resolution{Canonical: name, IsCore: true}
	}
	return Resolution{Canonical: raw}
}

// Core returns the canonical names in declaration order.
func (r *Resolver) Core() []string {
	out := make([]string, len(r.core))
	copy(out, r.core)
	return out
}

// CoreTotal returns the number of canonical categories.
func (r *Resolver) CoreTotal() int {
	return len(r.core)
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
