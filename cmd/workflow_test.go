package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadmap/internal/analysis"
	"github.com/sells-group/leadmap/internal/classify"
	"github.com/sells-group/leadmap/internal/config"
	"github.com/sells-group/leadmap/internal/dedupe"
	"github.com/sells-group/leadmap/internal/leadfile"
	"github.com/sells-group/leadmap/internal/leadsource"
	"github.com/sells-group/leadmap/internal/model"
	"github.com/sells-group/leadmap/internal/store"
)

const workflowCSV = "name,city,state,service_type,phone,created_at\n" +
	"Acme Roofing,Austin,TX,Roofer,5125550100,2025-03-01\n" +
	"Acme Roofing LLC,Austin,TX,Roofer,(512) 555-0100,2025-03-05\n" +
	"Lone Star Plumbing,Austin,TX,Plumber,5125550200,2025-03-02\n" +
	"Mile High Plumbing,Denver,CO,Plumber,3035550300,2025-03-03\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store:  config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "leadmap.db")},
		Ingest: config.IngestConfig{PageSize: 2, TimeoutSecs: 30},
		Analysis: config.AnalysisConfig{
			NormalizeMarkets:   true,
			MinMarketSize:      2,
			MaxCoveragePercent: 5,
			VeryLowPercent:     1,
			LowPercent:         3,
			RegionGapPercent:   1,
			TopN:               10,
			Watched:            []config.WatchedCategory{{Name: "EV Charging Installation", GrowthWeight: 27.11}},
		},
		Dedupe: config.DedupeConfig{NameSimilarity: 0.85},
	}
}

// fakeWriter records upsert batch sizes.
type fakeWriter struct {
	batches []int
	err     error
}

func (f *fakeWriter) UpsertLeads(_ context.Context, leads []model.Lead) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.batches = append(f.batches, len(leads))
	return int64(len(leads)), nil
}

func (f *fakeWriter) DeleteLeads(_ context.Context, ids []string) (int64, error) {
	return int64(len(ids)), nil
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte(workflowCSV), 0o644))
	return path
}

func TestImportLeads_Batches(t *testing.T) {
	w := &fakeWriter{}
	stats, written, err := importLeads(context.Background(), writeCSV(t), leadfile.Options{}, w, 3)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Leads)
	assert.Equal(t, int64(4), written)
	assert.Equal(t, []int{3, 1}, w.batches)
}

func TestImportLeads_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("disk full")}
	_, written, err := importLeads(context.Background(), writeCSV(t), leadfile.Options{}, w, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, written)
}

func TestImportLeads_MissingFile(t *testing.T) {
	_, _, err := importLeads(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), leadfile.Options{}, &fakeWriter{}, 10)
	assert.Error(t, err)
}

func TestInitStore_RejectsPostgREST(t *testing.T) {
	cfg = &config.Config{
		Store:     config.StoreConfig{Driver: "postgrest"},
		PostgREST: config.PostgRESTConfig{URL: "https://example.supabase.co/rest/v1", Table: "leads"},
		Ingest:    config.IngestConfig{PageSize: 100},
	}
	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keeps no run log")
}

func TestInitEnv_InvalidConfig(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}, Ingest: config.IngestConfig{PageSize: 100}}
	_, err := initEnv(context.Background())
	require.Error(t, err)
	assert.True(t, config.IsValidationError(err))
}

func TestRunAnalysis_InvalidOptionsBeforeStore(t *testing.T) {
	cfg = testConfig(t)
	cfg.Analysis.MaxCoveragePercent = 0

	_, _, err := runAnalysis(context.Background(), analysis.Request{Kind: "markets"})
	require.Error(t, err)
	assert.True(t, config.IsValidationError(err))
	assert.Contains(t, err.Error(), "max_coverage_percent")

	_, statErr := os.Stat(cfg.Store.SQLitePath)
	assert.True(t, os.IsNotExist(statErr), "store must not be opened")
}

func TestWorkflow_ImportAnalyzeDedupe(t *testing.T) {
	cfg = testConfig(t)
	ctx := context.Background()
	dir := t.TempDir()

	importCmd.SetContext(ctx)
	require.NoError(t, importCmd.RunE(importCmd, []string{writeCSV(t)}))

	// Markets to CSV.
	marketsOutput = outputFlags{output: filepath.Join(dir, "markets.csv")}
	t.Cleanup(func() { marketsOutput = outputFlags{} })
	marketsCmd.SetContext(ctx)
	require.NoError(t, marketsCmd.RunE(marketsCmd, nil))

	data, err := os.ReadFile(marketsOutput.output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Rank,City,State,Leads,Categories")
	assert.Contains(t, string(data), "1,Austin,TX,3,2")

	// Full report to Markdown.
	reportOutput = outputFlags{output: filepath.Join(dir, "report.md")}
	t.Cleanup(func() { reportOutput = outputFlags{} })
	reportCmd.SetContext(ctx)
	require.NoError(t, reportCmd.RunE(reportCmd, nil))

	data, err = os.ReadFile(reportOutput.output)
	require.NoError(t, err)
	md := string(data)
	assert.Contains(t, md, "## Run Summary")
	assert.Contains(t, md, "## Coverage")
	assert.Contains(t, md, "## Regions")
	assert.Contains(t, md, "EV Charging Installation")

	// Both analyses were recorded.
	st, err := initStore(ctx)
	require.NoError(t, err)
	runs, err := st.ListRuns(ctx, store.RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	require.NoError(t, st.Close())

	// Dedupe removes the newer Acme record.
	dedupeApply = true
	t.Cleanup(func() { dedupeApply = false })
	dedupeCmd.SetContext(ctx)
	require.NoError(t, dedupeCmd.RunE(dedupeCmd, nil))

	st, err = initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	page, err := st.FetchPage(ctx, leadsource.Filter{OrderBy: leadsource.OrderCreatedAt}, 0, 100)
	require.NoError(t, err)
	require.Len(t, page.Leads, 3)
	for _, l := range page.Leads {
		assert.NotEqual(t, "Acme Roofing LLC", l.Name)
	}
}

func TestFormatDedupeGroups(t *testing.T) {
	res := dedupe.Result{
		Leads: 3,
		Groups: []dedupe.Group{{
			Keep: model.Lead{ID: "keep-0001-aaaa", Name: "Acme Roofing"},
			Duplicates: []model.Lead{
				{ID: "dupe-0002-bbbb", Name: "Acme Roofing LLC", Phone: "5125550100", City: "Austin", State: "TX"},
			},
			Reasons: []dedupe.Reason{dedupe.ReasonPhone, dedupe.ReasonName},
		}},
	}

	var buf bytes.Buffer
	formatDedupeGroups(&buf, res)

	output := buf.String()
	assert.Contains(t, output, "KEEP")
	assert.Contains(t, output, "keep-000")
	assert.Contains(t, output, "dupe-000")
	assert.Contains(t, output, "Acme Roofing LLC")
	assert.Contains(t, output, "Austin, TX")
	assert.Contains(t, output, "phone+name")
}

func TestFormatVerdicts(t *testing.T) {
	verdicts := []classify.Verdict{
		{
			Candidate:  classify.Candidate{Category: "Gutter Guard Installer", Leads: 42, Markets: 7},
			Legitimate: true,
			Confidence: 0.92,
			Suggested:  "Gutter Services",
			Reason:     "Specialised gutter trade",
		},
		{
			Candidate: classify.Candidate{Category: "Shopping Mall", Leads: 3, Markets: 1},
			Err:       "anthropic: create message: 529 overloaded",
		},
	}

	var buf bytes.Buffer
	formatVerdicts(&buf, verdicts)

	output := buf.String()
	assert.Contains(t, output, "CATEGORY")
	assert.Contains(t, output, "Gutter Guard Installer")
	assert.Contains(t, output, "yes")
	assert.Contains(t, output, "0.92")
	assert.Contains(t, output, "Gutter Services")
	assert.Contains(t, output, "error")
	assert.Contains(t, output, "529 overloaded")
}
