package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadmap/internal/db"
	"github.com/sells-group/leadmap/internal/leadsource"
	"github.com/sells-group/leadmap/internal/market"
	"github.com/sells-group/leadmap/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool sizing.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller owns its lifecycle.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// FetchPage implements leadsource.Source. Rows that fail to scan are
// counted as malformed.
func (s *PostgresStore) FetchPage(ctx context.Context, f leadsource.Filter, offset, limit int) (leadsource.Page, error) {
	query, args := leadPageQuery(f, offset, limit, dollar)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return leadsource.Page{}, eris.Wrapf(err, "postgres: fetch leads offset %d", offset)
	}
	defer rows.Close()

	var page leadsource.Page
	for rows.Next() {
		page.Raw++
		l, err := scanPgLead(rows)
		if err != nil {
			page.Malformed++
			continue
		}
		page.Leads = append(page.Leads, l)
	}
	if err := rows.Err(); err != nil {
		return leadsource.Page{}, eris.Wrapf(err, "postgres: iterate leads offset %d", offset)
	}
	return page, nil
}

func scanPgLead(row pgx.Row) (model.Lead, error) {
	var l model.Lead
	var name, city, state, svc, phone, email, website, address *string
	err := row.Scan(&l.ID, &name, &city, &state, &svc, &phone, &email,
		&website, &address, &l.Rating, &l.ReviewCount, &l.CreatedAt)
	if err != nil {
		return l, err
	}
	l.Name = model.Deref(name)
	l.City = model.Deref(city)
	l.State = model.Deref(state)
	l.ServiceType = model.Deref(svc)
	l.Phone = model.Deref(phone)
	l.Email = model.Deref(email)
	l.Website = model.Deref(website)
	l.Address = model.Deref(address)
	return l, nil
}

// UpsertLeads merges leads on id. Missing ids and timestamps are filled in.
func (s *PostgresStore) UpsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      leadColumns,
		ConflictKeys: []string{"id"},
	}, leadRows(leads))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert leads")
	}
	return n, nil
}

func (s *PostgresStore) DeleteLeads(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete leads")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, kind string, filter leadsource.Filter) (*model.Run, error) {
	r := newRun(kind, filter)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_runs (id, kind, filter, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.Kind, r.Filter, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return r, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	return s.finishRun(ctx, runID, model.RunStatusComplete, summary, "")
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, summary *model.RunSummary, cause error) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, summary, errMessage(cause))
}

func (s *PostgresStore) finishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary, errMsg string) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE analysis_runs SET status = $1, summary = $2, error = NULLIF($3, ''), updated_at = $4 WHERE id = $5`,
		string(status), summaryJSON, errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

const runSelect = `SELECT id, kind, filter, status, summary, error, created_at, updated_at FROM analysis_runs`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx, runSelect+` WHERE id = $1`, runID))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := runSelect + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}
	query += ` ORDER BY created_at DESC, id`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, runLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var summary []byte
	var status string
	var errMsg *string
	if err := row.Scan(&r.ID, &r.Kind, &r.Filter, &status, &summary, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	r.Error = model.Deref(errMsg)
	if len(summary) > 0 {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal(summary, r.Summary); err != nil {
			return nil, eris.Wrap(err, "unmarshal summary")
		}
	}
	return &r, nil
}

// SaveCoverage writes one snapshot row per market with COPY.
func (s *PostgresStore) SaveCoverage(ctx context.Context, runID string, records []market.CoverageRecord) (int64, error) {
	n, err := db.CopyFrom(ctx, s.pool, "coverage_snapshots", coverageColumns, coverageRows(runID, records))
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: save coverage for run %s", runID)
	}
	return n, nil
}

func newRun(kind string, filter leadsource.Filter) *model.Run {
	now := time.Now().UTC()
	return &model.Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Filter:    filter.String(),
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func runLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}

// leadRows flattens leads in leadColumns order. Empty strings become NULL.
func leadRows(leads []model.Lead) [][]any {
	now := time.Now().UTC()
	rows := make([][]any, len(leads))
	for i, l := range leads {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		created := l.CreatedAt
		if created.IsZero() {
			created = now
		}
		rows[i] = []any{
			id, nullable(l.Name), nullable(l.City), nullable(l.State),
			nullable(l.ServiceType), nullable(l.Phone), nullable(l.Email),
			nullable(l.Website), nullable(l.Address), l.Rating, l.ReviewCount,
			created.UTC(),
		}
	}
	return rows
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
