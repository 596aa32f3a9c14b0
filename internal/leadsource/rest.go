package leadsource

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadmap/internal/model"
	"github.com/sells-group/leadmap/internal/resilience"
	"github.com/sells-group/leadmap/pkg/postgrest"
)

// RESTSource reads leads from a PostgREST table.
type RESTSource struct {
	client postgrest.Client
	table  string
}

// NewRESTSource creates a Source over table.
func NewRESTSource(c postgrest.Client, table string) *RESTSource {
	return &RESTSource{client: c, table: table}
}

// FetchPage implements Source. Rows are decoded one at a time so a bad row
// is counted as malformed instead of failing the page.
func (s *RESTSource) FetchPage(ctx context.Context, f Filter, offset, limit int) (Page, error) {
	rows, err := s.client.Select(ctx, s.table, restQuery(f, offset, limit))
	if err != nil {
		var se *postgrest.StatusError
		if errors.As(err, &se) && resilience.IsTransientHTTPStatus(se.StatusCode) {
			te := resilience.NewTransientError(err, se.StatusCode)
			te.RetryAfter = se.RetryAfter
			return Page{}, te
		}
		return Page{}, eris.Wrapf(err, "leadsource: select %s offset %d", s.table, offset)
	}

	page := Page{Raw: len(rows), Leads: make([]model.Lead, 0, len(rows))}
	for _, raw := range rows {
		var rl restLead
		if err := json.Unmarshal(raw, &rl); err != nil {
			page.Malformed++
			continue
		}
		l := rl.Lead
		l.CreatedAt = time.Time(rl.CreatedAt)
		page.Leads = append(page.Leads, l)
	}
	return page, nil
}

// restLead shadows Lead.CreatedAt so both timestamptz and plain timestamp
// columns decode.
type restLead struct {
	model.Lead
	CreatedAt restTime `json:"created_at"`
}

// restTimeLayouts are tried in order. Values without a zone are taken as UTC.
var restTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

type restTime time.Time

func (t *restTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = restTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*t = restTime{}
		return nil
	}
	for _, layout := range restTimeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			*t = restTime(v.UTC())
			return nil
		}
	}
	return eris.Errorf("leadsource: unrecognised created_at %q", s)
}

func restQuery(f Filter, offset, limit int) postgrest.Query {
	q := postgrest.Query{Offset: offset, Limit: limit}
	eq := map[string]string{}
	if f.City != "" {
		eq["city"] = f.City
	}
	if f.State != "" {
		eq["state"] = f.State
	}
	if f.Category != "" {
		eq["service_type"] = f.Category
	}
	if len(eq) > 0 {
		q.Eq = eq
	}
	if f.CategoryNotNull && f.Category == "" {
		q.NotNull = []string{"service_type"}
	}
	for _, col := range f.OrderColumns() {
		q.Order = append(q.Order, col+".asc")
	}
	return q
}

// restBatchSize bounds rows per upsert request and ids per delete URL.
const restBatchSize = 500

// UpsertLeads writes leads through PostgREST in batches, merging on id.
// Missing ids and timestamps are filled in the same way the SQL stores do.
func (s *RESTSource) UpsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	now := time.Now().UTC()
	var n int64
	for start := 0; start < len(leads); start += restBatchSize {
		end := min(start+restBatchSize, len(leads))
		rows := make([]map[string]any, 0, end-start)
		for _, l := range leads[start:end] {
			rows = append(rows, restRow(l, now))
		}
		if err := s.client.Upsert(ctx, s.table, rows); err != nil {
			return n, eris.Wrapf(err, "leadsource: upsert %s", s.table)
		}
		n += int64(len(rows))
	}
	return n, nil
}

// DeleteLeads removes leads by id. PostgREST is asked for a minimal reply,
// so the count is the number of ids sent.
func (s *RESTSource) DeleteLeads(ctx context.Context, ids []string) (int64, error) {
	var n int64
	for start := 0; start < len(ids); start += restBatchSize / 5 {
		end := min(start+restBatchSize/5, len(ids))
		if err := s.client.Delete(ctx, s.table, "id", ids[start:end]); err != nil {
			return n, eris.Wrapf(err, "leadsource: delete from %s", s.table)
		}
		n += int64(end - start)
	}
	return n, nil
}

func restRow(l model.Lead, now time.Time) map[string]any {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	str := func(s string) any {
		if s == "" {
			return nil
		}
		return s
	}
	return map[string]any{
		"id":           l.ID,
		"name":         str(l.Name),
		"city":         str(l.City),
		"state":        str(l.State),
		"service_type": str(l.ServiceType),
		"phone":        str(l.Phone),
		"email":        str(l.Email),
		"website":      str(l.Website),
		"address":      str(l.Address),
		"rating":       l.Rating,
		"review_count": l.ReviewCount,
		"created_at":   l.CreatedAt.Format(time.RFC3339Nano),
	}
}
