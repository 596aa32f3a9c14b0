package analysis

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadmap/internal/leadsource"
	"github.com/sells-group/leadmap/internal/market"
	"github.com/sells-group/leadmap/internal/model"
	"github.com/sells-group/leadmap/internal/opportunity"
	"github.com/sells-group/leadmap/internal/region"
	"github.com/sells-group/leadmap/internal/taxonomy"
)

// RunRecorder keeps the run log. store.Store satisfies it.
type RunRecorder interface {
	CreateRun(ctx context.Context, kind string, filter leadsource.Filter) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error
	FailRun(ctx context.Context, runID string, summary *model.RunSummary, cause error) error
	SaveCoverage(ctx context.Context, runID string, records []market.CoverageRecord) (int64, error)
}

// Request describes one analysis run.
type Request struct {
	Kind         string
	Filter       leadsource.Filter
	SaveCoverage bool
	// Params overrides the engine's scoring thresholds for this run.
	Params *opportunity.Params
}

// Report is everything one run produces.
type Report struct {
	RunID           string                    `json:"run_id,omitempty"`
	Filter          leadsource.Filter         `json:"filter"`
	TaxonomyVersion string                    `json:"taxonomy_version"`
	CoreTotal       int                       `json:"core_total"`
	Markets         *market.Result            `json:"-"`
	TopMarkets      []market.Rank             `json:"top_markets"`
	Coverage        []market.CoverageRecord   `json:"coverage"`
	Opportunities   []opportunity.Record      `json:"opportunities"`
	Regions         map[string]*region.Region `json:"-"`
	RegionSummaries []region.Summary          `json:"regions"`
	RegionGaps      []region.Gap              `json:"region_gaps"`
	Summary         model.RunSummary          `json:"summary"`
}

// Engine runs analyses. It holds no per-run state, so one Engine can serve
// concurrent requests.
type Engine struct {
	fetcher  *leadsource.Fetcher
	opts     Options
	resolver *taxonomy.Resolver
	recorder RunRecorder
}

// NewEngine validates opts and builds an Engine. recorder may be nil.
func NewEngine(fetcher *leadsource.Fetcher, opts Options, recorder RunRecorder) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(opts.Watched) == 0 {
		zap.L().Warn("analysis: no watched categories configured; opportunity and region gap lists will be empty")
	}
	return &Engine{
		fetcher:  fetcher,
		opts:     opts,
		resolver: taxonomy.NewResolver(opts.Taxonomy),
		recorder: recorder,
	}, nil
}

// Options returns the validated engine options.
func (e *Engine) Options() Options {
	return e.opts
}

// Run fetches a fresh snapshot and computes every view. Configuration
// problems are reported before any fetch; a failed fetch yields no report.
func (e *Engine) Run(ctx context.Context, req Request) (*Report, error) {
	params := e.opts.Params
	if req.Params != nil {
		params = *req.Params
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := req.Filter.Validate(); err != nil {
		return nil, err
	}
	if req.Kind == "" {
		req.Kind = "report"
	}

	log := zap.L().With(zap.String("kind", req.Kind), zap.String("filter", req.Filter.String()))
	start := time.Now()

	runID := e.startRun(ctx, log, req)

	agg := market.NewAggregator(e.resolver, market.Options{Normalize: e.opts.Normalize})
	stats, err := e.fetcher.Each(ctx, req.Filter, func(l model.Lead) error {
		agg.Add(l)
		return nil
	})
	summary := model.RunSummary{
		Pages:      stats.Pages,
		Rows:       stats.Rows,
		Leads:      stats.Leads,
		Malformed:  stats.Malformed,
		DurationMs: time.Since(start).Milliseconds(),
		TimedOut:   leadsource.IsTimeout(err),
	}
	if err != nil {
		e.failRun(log, runID, &summary, err)
		return nil, eris.Wrap(err, "analysis: fetch leads")
	}

	res := agg.Result()
	report, err := e.assemble(res, params)
	if err != nil {
		e.failRun(log, runID, &summary, err)
		return nil, err
	}
	report.RunID = runID
	report.Filter = req.Filter

	summary.Markets = len(res.Markets)
	summary.SkippedNoLocation = res.Stats.SkippedNoLocation
	summary.Opportunities = len(report.Opportunities)
	summary.DurationMs = time.Since(start).Milliseconds()
	report.Summary = summary

	if runID != "" {
		if req.SaveCoverage {
			if _, err := e.recorder.SaveCoverage(ctx, runID, report.Coverage); err != nil {
				e.failRun(log, runID, &summary, err)
				return nil, eris.Wrap(err, "analysis: save coverage")
			}
		}
		if err := e.recorder.CompleteRun(ctx, runID, &summary); err != nil {
			log.Warn("analysis: complete run", zap.String("run_id", runID), zap.Error(err))
		}
	}

	log.Info("analysis: run complete",
		zap.Int("leads", summary.Leads),
		zap.Int("markets", summary.Markets),
		zap.Int("opportunities", summary.Opportunities),
		zap.Int("malformed", summary.Malformed),
		zap.Int64("duration_ms", summary.DurationMs),
	)
	return report, nil
}

func (e *Engine) assemble(res *market.Result, params opportunity.Params) (*Report, error) {
	coreTotal := e.resolver.CoreTotal()
	coverage, err := market.CoverageAll(res, coreTotal)
	if err != nil {
		return nil, err
	}

	sorted := res.Sorted()
	opps, err := opportunity.Score(sorted, e.opts.Watched, params)
	if err != nil {
		return nil, err
	}

	regions := region.Rollup(sorted, e.opts.Regions)
	return &Report{
		TaxonomyVersion: e.opts.Taxonomy.Version,
		CoreTotal:       coreTotal,
		Markets:         res,
		TopMarkets:      res.TopMarkets(e.opts.TopN),
		Coverage:        coverage,
		Opportunities:   opps,
		Regions:         regions,
		RegionSummaries: region.Summaries(regions, e.opts.Watched, e.opts.RegionGapPercent),
		RegionGaps:      region.Gaps(regions, e.opts.Watched, e.opts.RegionGapPercent),
	}, nil
}

// startRun records the run when a recorder is configured. A run log failure
// is logged and does not block the analysis.
func (e *Engine) startRun(ctx context.Context, log *zap.Logger, req Request) string {
	if e.recorder == nil {
		return ""
	}
	run, err := e.recorder.CreateRun(ctx, req.Kind, req.Filter)
	if err != nil {
		log.Warn("analysis: create run", zap.Error(err))
		return ""
	}
	return run.ID
}

func (e *Engine) failRun(log *zap.Logger, runID string, summary *model.RunSummary, cause error) {
	if runID == "" {
		return
	}
	// The caller's context may already be cancelled; the failure still
	// needs recording.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.recorder.FailRun(ctx, runID, summary, cause); err != nil {
		log.Warn("analysis: fail run", zap.String("run_id", runID), zap.Error(err))
	}
}
