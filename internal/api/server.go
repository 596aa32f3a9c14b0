// Package api serves the dashboard JSON API. Every analysis request runs an
// independent analysis over a fresh snapshot of leads.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/sells-group/leadmap/internal/analysis"
	"github.com/sells-group/leadmap/internal/model"
	"github.com/sells-group/leadmap/internal/store"
)

// Analyzer runs analyses. *analysis.Engine satisfies it.
type Analyzer interface {
	Run(ctx context.Context, req analysis.Request) (*analysis.Report, error)
	Options() analysis.Options
}

// RunLister reads the run log. store.Store satisfies it.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Config configures the HTTP surface.
type Config struct {
	AllowedOrigins []string
	// RequestTimeout bounds each request; zero means 5 minutes.
	RequestTimeout time.Duration
}

// Server holds the API dependencies.
type Server struct {
	analyzer Analyzer
	runs     RunLister
	cfg      Config
}

// NewServer creates a Server. runs may be nil when no run log is configured.
func NewServer(a Analyzer, runs RunLister, cfg Config) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{analyzer: a, runs: runs, cfg: cfg}
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/markets", s.handleMarkets)
		r.Get("/coverage", s.handleCoverage)
		r.Get("/opportunities", s.handleOpportunities)
		r.Get("/regions", s.handleRegions)
		r.Get("/runs", s.handleRuns)
	})

	return otelhttp.NewHandler(r, "leadmap-api")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
