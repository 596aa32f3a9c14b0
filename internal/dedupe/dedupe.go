// Package dedupe finds duplicate leads by phone number and by similar names
// within one market.
package dedupe

import (
	"cmp"
	"slices"
	"strings"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/sells-group/leadmap/internal/config"
	"github.com/sells-group/leadmap/internal/model"
)

// Options configures duplicate detection.
type Options struct {
	// NameSimilarity is the minimum Levenshtein similarity in (0, 1] for two
	// names in the same market to match.
	NameSimilarity float64
	// FranchiseNames are brands whose locations share a name legitimately.
	// Leads carrying one only match by phone.
	FranchiseNames []string
}

// Validate checks the thresholds.
func (o Options) Validate() error {
	var problems []string
	if o.NameSimilarity <= 0 || o.NameSimilarity > 1 {
		problems = append(problems, "name_similarity must be in (0, 1]")
	}
	return config.NewValidationError("dedupe", problems)
}

// Reason records why leads were grouped.
type Reason string

const (
	ReasonPhone Reason = "phone"
	ReasonName  Reason = "name"
)

// Group is a set of leads describing one business. Keep is the oldest record.
type Group struct {
	Keep       model.Lead   `json:"keep"`
	Duplicates []model.Lead `json:"duplicates"`
	Reasons    []Reason     `json:"reasons"`
}

// Result lists every duplicate group found.
type Result struct {
	Leads  int     `json:"leads"`
	Groups []Group `json:"groups"`
}

// DuplicateIDs returns the ids to delete, in group order.
func (r Result) DuplicateIDs() []string {
	var ids []string
	for _, g := range r.Groups {
		for _, d := range g.Duplicates {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Duplicates counts the leads that would be removed.
func (r Result) Duplicates() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Duplicates)
	}
	return n
}

// Find groups duplicate leads. Matching is transitive: if A shares a phone
// with B and B's name matches C, all three form one group.
func Find(leads []model.Lead, opts Options) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	franchises := make([]string, 0, len(opts.FranchiseNames))
	for _, f := range opts.FranchiseNames {
		if n := NormalizeName(f); n != "" {
			franchises = append(franchises, n)
		}
	}

	uf := newUnionFind(len(leads))
	reasons := make(map[[2]int]Reason)

	byPhone := make(map[string]int)
	names := make([]string, len(leads))
	markets := make(map[string][]int)
	for i, l := range leads {
		if p := NormalizePhone(l.Phone); len(p) >= minPhoneDigits {
			if j, ok := byPhone[p]; ok {
				uf.union(j, i)
				reasons[[2]int{j, i}] = ReasonPhone
			} else {
				byPhone[p] = i
			}
		}

		names[i] = NormalizeName(l.Name)
		if names[i] == "" || !l.HasLocation() || isFranchise(names[i], franchises) {
			continue
		}
		mk := strings.ToLower(strings.Join(strings.Fields(l.City), " ")) + "|" + strings.ToUpper(strings.TrimSpace(l.State))
		markets[mk] = append(markets[mk], i)
	}

	for _, idx := range markets {
		for a := 0; a < len(idx); a++ {
			for b := a + 1; b < len(idx); b++ {
				i, j := idx[a], idx[b]
				if uf.find(i) == uf.find(j) {
					continue
				}
				if similar(names[i], names[j], opts.NameSimilarity) {
					uf.union(i, j)
					reasons[[2]int{i, j}] = ReasonName
				}
			}
		}
	}

	groups := make(map[int][]int)
	for i := range leads {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}
	groupReasons := make(map[int]map[Reason]bool)
	for pair, r := range reasons {
		root := uf.find(pair[0])
		if groupReasons[root] == nil {
			groupReasons[root] = make(map[Reason]bool)
		}
		groupReasons[root][r] = true
	}

	res := Result{Leads: len(leads)}
	for root, members := range groups {
		if len(members) < 2 {
			continue
		}
		res.Groups = append(res.Groups, buildGroup(leads, members, groupReasons[root]))
	}
	slices.SortFunc(res.Groups, func(a, b Group) int {
		return cmp.Compare(a.Keep.ID, b.Keep.ID)
	})

	zap.L().Info("dedupe: scan complete",
		zap.Int("leads", res.Leads),
		zap.Int("groups", len(res.Groups)),
		zap.Int("duplicates", res.Duplicates()),
	)
	return res, nil
}

func buildGroup(leads []model.Lead, members []int, reasons map[Reason]bool) Group {
	sorted := make([]model.Lead, len(members))
	for i, m := range members {
		sorted[i] = leads[m]
	}
	slices.SortStableFunc(sorted, olderFirst)

	g := Group{Keep: sorted[0], Duplicates: sorted[1:]}
	for _, r := range []Reason{ReasonPhone, ReasonName} {
		if reasons[r] {
			g.Reasons = append(g.Reasons, r)
		}
	}
	return g
}

// olderFirst orders by created_at ascending. Leads without a timestamp sort
// last; ties fall back to id.
func olderFirst(a, b model.Lead) int {
	switch {
	case a.CreatedAt.IsZero() && !b.CreatedAt.IsZero():
		return 1
	case !a.CreatedAt.IsZero() && b.CreatedAt.IsZero():
		return -1
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func similar(a, b string, threshold float64) bool {
	if a == b {
		return true
	}
	return levenshtein.Similarity(a, b, nil) >= threshold
}

func isFranchise(name string, franchises []string) bool {
	padded := " " + name + " "
	for _, f := range franchises {
		if strings.Contains(padded, " "+f+" ") {
			return true
		}
	}
	return false
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
