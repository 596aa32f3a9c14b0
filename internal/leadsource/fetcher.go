package leadsource

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadmap/internal/model"
	"github.com/sells-group/leadmap/internal/resilience"
)

// DefaultPageSize matches the row cap most hosted PostgREST endpoints apply.
const DefaultPageSize = 1000

// Options configures a Fetcher.
type Options struct {
	PageSize   int
	Timeout    time.Duration // 0 = no budget
	RetryCount int
	RateLimit  float64 // pages per second, 0 = unlimited
}

// Stats describes a completed or partial fetch.
type Stats struct {
	Pages     int `json:"pages"`
	Rows      int `json:"rows"`
	Leads     int `json:"leads"`
	Malformed int `json:"malformed"`
}

// Fetcher walks a Source with offset pagination.
type Fetcher struct {
	src      Source
	pageSize int
	timeout  time.Duration
	retry    resilience.RetryConfig
	limiter  *rate.Limiter
	name     string
}

// NewFetcher creates a Fetcher over src.
func NewFetcher(src Source, opts Options) *Fetcher {
	f := &Fetcher{
		src:      src,
		pageSize: opts.PageSize,
		timeout:  opts.Timeout,
		retry:    resilience.FromRetryCount(opts.RetryCount),
		name:     "leads",
	}
	if f.pageSize <= 0 {
		f.pageSize = DefaultPageSize
	}
	if opts.RateLimit > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	f.retry.OnRetry = resilience.RetryLogger(f.name, "fetch_page")
	return f
}

// PageSize returns the effective window size.
func (f *Fetcher) PageSize() int {
	return f.pageSize
}

// Each fetches every lead matching filter, calling fn for each as its page
// arrives. Paging stops at the first page shorter than the window. An error
// from fn aborts the fetch and is returned as is.
func (f *Fetcher) Each(ctx context.Context, filter Filter, fn func(model.Lead) error) (Stats, error) {
	var stats Stats
	if err := filter.Validate(); err != nil {
		return stats, err
	}

	runCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	log := zap.L().With(zap.String("filter", filter.String()), zap.Int("page_size", f.pageSize))
	start := time.Now()

	for offset := 0; ; offset += f.pageSize {
		if err := runCtx.Err(); err != nil {
			return stats, f.fail(ctx, runCtx, stats, err)
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(runCtx); err != nil {
				return stats, f.fail(ctx, runCtx, stats, err)
			}
		}

		page, err := resilience.DoVal(runCtx, f.retry, func(ctx context.Context) (Page, error) {
			return f.src.FetchPage(ctx, filter, offset, f.pageSize)
		})
		if err != nil {
			return stats, f.fail(ctx, runCtx, stats, err)
		}

		stats.Pages++
		stats.Rows += page.Raw
		stats.Malformed += page.Malformed
		for _, l := range page.Leads {
			stats.Leads++
			if err := fn(l); err != nil {
				return stats, err
			}
		}

		log.Debug("leadsource: page fetched",
			zap.Int("offset", offset),
			zap.Int("rows", page.Raw),
			zap.Int("malformed", page.Malformed),
		)

		if page.Raw < f.pageSize {
			break
		}
	}

	log.Info("leadsource: fetch complete",
		zap.Int("pages", stats.Pages),
		zap.Int("rows", stats.Rows),
		zap.Int("malformed", stats.Malformed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return stats, nil
}

// All buffers every matching lead. On error no leads are returned.
func (f *Fetcher) All(ctx context.Context, filter Filter) ([]model.Lead, Stats, error) {
	var leads []model.Lead
	stats, err := f.Each(ctx, filter, func(l model.Lead) error {
		leads = append(leads, l)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return leads, stats, nil
}

// fail wraps err with progress diagnostics. The budget only counts as a
// timeout when the caller's own context is still live.
func (f *Fetcher) fail(parent, runCtx context.Context, stats Stats, err error) error {
	dse := &DataSourceError{Pages: stats.Pages, Rows: stats.Rows, Err: err}
	expired := errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded)
	if f.timeout > 0 && parent.Err() == nil && expired {
		dse.Timeout = true
		dse.Err = eris.Wrapf(ErrDataSourceTimeout, "budget %s exceeded", f.timeout)
	}
	zap.L().Warn("leadsource: fetch failed",
		zap.Int("pages", stats.Pages),
		zap.Int("rows", stats.Rows),
		zap.Bool("timeout", dse.Timeout),
		zap.Error(err),
	)
	return dse
}
