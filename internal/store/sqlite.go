package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadmap/internal/leadsource"
	"github.com/sells-group/leadmap/internal/market"
	"github.com/sells-group/leadmap/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	name         TEXT,
	city         TEXT,
	state        TEXT,
	service_type TEXT,
	phone        TEXT,
	email        TEXT,
	website      TEXT,
	address      TEXT,
	rating       REAL,
	review_count INTEGER,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_market ON leads(state, city);
CREATE INDEX IF NOT EXISTS idx_leads_service_type ON leads(service_type);
CREATE INDEX IF NOT EXISTS idx_leads_created_id ON leads(created_at, id);

CREATE TABLE IF NOT EXISTS analysis_runs (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	filter     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analysis_runs_status ON analysis_runs(status);

CREATE TABLE IF NOT EXISTS coverage_snapshots (
	run_id        TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
	city          TEXT NOT NULL,
	state         TEXT NOT NULL,
	total         INTEGER NOT NULL,
	core_percent  INTEGER NOT NULL,
	core_covered  INTEGER NOT NULL,
	core_total    INTEGER NOT NULL,
	other_count   INTEGER NOT NULL,
	uncategorized INTEGER NOT NULL,
	PRIMARY KEY (run_id, state, city)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FetchPage implements leadsource.Source.
func (s *SQLiteStore) FetchPage(ctx context.Context, f leadsource.Filter, offset, limit int) (leadsource.Page, error) {
	query, args := leadPageQuery(f, offset, limit, question)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return leadsource.Page{}, eris.Wrapf(err, "sqlite: fetch leads offset %d", offset)
	}
	defer rows.Close() //nolint:errcheck

	var page leadsource.Page
	for rows.Next() {
		page.Raw++
		l, err := scanSQLiteLead(rows)
		if err != nil {
			page.Malformed++
			continue
		}
		page.Leads = append(page.Leads, l)
	}
	if err := rows.Err(); err != nil {
		return leadsource.Page{}, eris.Wrapf(err, "sqlite: iterate leads offset %d", offset)
	}
	return page, nil
}

func scanSQLiteLead(row scannable) (model.Lead, error) {
	var l model.Lead
	var name, city, state, svc, phone, email, website, address sql.NullString
	var rating sql.NullFloat64
	var reviews sql.NullInt64
	err := row.Scan(&l.ID, &name, &city, &state, &svc, &phone, &email,
		&website, &address, &rating, &reviews, &l.CreatedAt)
	if err != nil {
		return l, err
	}
	l.Name = name.String
	l.City = city.String
	l.State = state.String
	l.ServiceType = svc.String
	l.Phone = phone.String
	l.Email = email.String
	l.Website = website.String
	l.Address = address.String
	if rating.Valid {
		l.Rating = &rating.Float64
	}
	if reviews.Valid {
		n := int(reviews.Int64)
		l.ReviewCount = &n
	}
	return l, nil
}

// UpsertLeads merges leads on id in a single transaction.
func (s *SQLiteStore) UpsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	var sets []string
	for _, c := range leadColumns[1:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	stmt := fmt.Sprintf(
		"INSERT INTO leads (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		strings.Join(leadColumns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(leadColumns)), ", "),
		strings.Join(sets, ", "),
	)

	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		prep, err := tx.PrepareContext(ctx, stmt)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare upsert")
		}
		defer prep.Close() //nolint:errcheck

		for _, row := range leadRows(leads) {
			res, err := prep.ExecContext(ctx, row...)
			if err != nil {
				return eris.Wrapf(err, "sqlite: upsert lead %v", row[0])
			}
			affected, _ := res.RowsAffected()
			n += affected
		}
		return nil
	})
	return n, err
}

func (s *SQLiteStore) DeleteLeads(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM leads WHERE id IN ("+strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")+")",
		args...,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete leads")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, kind string, filter leadsource.Filter) (*model.Run, error) {
	r := newRun(kind, filter)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, kind, filter, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.Filter, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return r, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	return s.finishRun(ctx, runID, model.RunStatusComplete, summary, "")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, summary *model.RunSummary, cause error) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, summary, errMessage(cause))
}

func (s *SQLiteStore) finishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary, errMsg string) error {
	var summaryJSON sql.NullString
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal summary")
		}
		summaryJSON = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_runs SET status = ?, summary = ?, error = NULLIF(?, ''), updated_at = ? WHERE id = ?`,
		string(status), summaryJSON, errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	return scanSQLiteRun(s.db.QueryRowContext(ctx, runSelect+` WHERE id = ?`, runID))
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := runSelect + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, runLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) SaveCoverage(ctx context.Context, runID string, records []market.CoverageRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	stmt := fmt.Sprintf(
		"INSERT OR REPLACE INTO coverage_snapshots (%s) VALUES (%s)",
		strings.Join(coverageColumns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(coverageColumns)), ", "),
	)

	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		prep, err := tx.PrepareContext(ctx, stmt)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare coverage insert")
		}
		defer prep.Close() //nolint:errcheck

		for _, row := range coverageRows(runID, records) {
			if _, err := prep.ExecContext(ctx, row...); err != nil {
				return eris.Wrapf(err, "sqlite: save coverage for run %s", runID)
			}
			n++
		}
		return nil
	})
	return n, err
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var summary, errMsg sql.NullString

	err := row.Scan(&r.ID, &r.Kind, &r.Filter, &status, &summary, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = model.RunStatus(status)
	r.Error = errMsg.String
	if summary.Valid {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal([]byte(summary.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}
