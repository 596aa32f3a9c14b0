package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadmap/internal/leadsource"
	"github.com/sells-group/leadmap/internal/market"
	"github.com/sells-group/leadmap/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func strPtr(s string) *string { return &s }

func TestPostgresStore_FetchPage(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rating := 4.5

	rows := pgxmock.NewRows(leadColumns).
		AddRow("1", strPtr("Acme"), strPtr("Austin"), strPtr("TX"), strPtr("Roofer"),
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), &rating, (*int)(nil), created).
		AddRow("2", (*string)(nil), strPtr("Austin"), strPtr("TX"), (*string)(nil),
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*float64)(nil), (*int)(nil), created)

	mock.ExpectQuery(`SELECT id, name, city, state, service_type, .* FROM leads WHERE 1=1 AND city = \$1 AND state = \$2 ORDER BY created_at, id LIMIT \$3 OFFSET \$4`).
		WithArgs("Austin", "TX", 50, 100).
		WillReturnRows(rows)

	page, err := s.FetchPage(context.Background(), leadsource.Filter{City: "Austin", State: "TX"}, 100, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Raw)
	require.Len(t, page.Leads, 2)
	assert.Equal(t, "Roofer", page.Leads[0].ServiceType)
	assert.Equal(t, "", page.Leads[1].ServiceType)
	assert.Equal(t, "", page.Leads[1].Name)
	require.NotNil(t, page.Leads[0].Rating)
	assert.Nil(t, page.Leads[1].Rating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchPage_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM leads`).WillReturnError(errors.New("conn refused"))

	_, err := s.FetchPage(context.Background(), leadsource.Filter{}, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch leads offset 0")
}

func TestPostgresStore_UpsertLeads(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_leads"}, leadColumns).WillReturnResult(2)
	mock.ExpectExec("DELETE FROM").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO "leads"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.UpsertLeads(context.Background(), []model.Lead{
		{ID: "a", City: "Austin", State: "TX"},
		{City: "Denver", State: "CO"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteLeads(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM leads WHERE id = ANY\(\$1\)`).
		WithArgs([]string{"a", "b"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := s.DeleteLeads(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO analysis_runs`).
		WithArgs(pgxmock.AnyArg(), "coverage", "state=TX", "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "coverage", leadsource.Filter{State: "TX"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE analysis_runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), "timed out", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FailRun(context.Background(), "run-1", &model.RunSummary{TimedOut: true}, errors.New("timed out"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE analysis_runs SET status`).
		WithArgs(string(model.RunStatusComplete), pgxmock.AnyArg(), "", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing", &model.RunSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, kind, filter, status, summary, error, created_at, updated_at FROM analysis_runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "kind", "filter", "status", "summary", "error", "created_at", "updated_at"}).
		AddRow("r1", "coverage", "all", "complete", []byte(`{"rows":10}`), (*string)(nil), now, now).
		AddRow("r2", "coverage", "all", "failed", []byte(nil), strPtr("boom"), now, now)

	mock.ExpectQuery(`FROM analysis_runs WHERE true AND kind = \$1 ORDER BY created_at DESC, id LIMIT \$2`).
		WithArgs("coverage", 100).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{Kind: "coverage"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	require.NotNil(t, runs[0].Summary)
	assert.Equal(t, 10, runs[0].Summary.Rows)
	assert.Nil(t, runs[1].Summary)
	assert.Equal(t, "boom", runs[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveCoverage(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"coverage_snapshots"}, coverageColumns).WillReturnResult(1)

	n, err := s.SaveCoverage(context.Background(), "run-1", []market.CoverageRecord{
		{Market: market.Key{City: "Austin", State: "TX"}, Total: 3, CorePercent: 6, CoreCovered: 2, CoreTotal: 34},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow(names[0]))
	for _, name := range names[1:] {
		mock.ExpectExec(".*").WillReturnResult(pgxmock.NewResult("EXEC", 0))
		mock.ExpectExec("INSERT INTO schema_migrations").
			WithArgs(name).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(migrationLockID).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationNames_Sorted(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_leads.sql", "002_analysis_runs.sql", "003_coverage_snapshots.sql"}, names)
}
