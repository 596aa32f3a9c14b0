package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadmap/internal/analysis"
	"github.com/sells-group/leadmap/internal/config"
	"github.com/sells-group/leadmap/internal/leadsource"
	"github.com/sells-group/leadmap/internal/market"
	"github.com/sells-group/leadmap/internal/model"
	"github.com/sells-group/leadmap/internal/opportunity"
	"github.com/sells-group/leadmap/internal/region"
	"github.com/sells-group/leadmap/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type marketsResponse struct {
	Summary model.RunSummary `json:"summary"`
	Markets []market.Rank    `json:"markets"`
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	q := queryParser{values: r.URL.Query()}
	top := q.intVal("top", s.analyzer.Options().TopN)
	req := analysis.Request{Kind: "api:markets", Filter: q.filter()}
	if q.failed(w) {
		return
	}

	report, ok := s.run(w, r, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, marketsResponse{
		Summary: report.Summary,
		Markets: report.Markets.TopMarkets(top),
	})
}

type coverageResponse struct {
	Summary   model.RunSummary        `json:"summary"`
	CoreTotal int                     `json:"core_total"`
	Coverage  []market.CoverageRecord `json:"coverage"`
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	q := queryParser{values: r.URL.Query()}
	req := analysis.Request{Kind: "api:coverage", Filter: q.filter()}
	if q.failed(w) {
		return
	}

	report, ok := s.run(w, r, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, coverageResponse{
		Summary:   report.Summary,
		CoreTotal: report.CoreTotal,
		Coverage:  report.Coverage,
	})
}

type opportunitiesResponse struct {
	Summary       model.RunSummary                `json:"summary"`
	Params        opportunity.Params              `json:"params"`
	Opportunities []opportunity.Record            `json:"opportunities,omitempty"`
	Groups        map[string][]opportunity.Record `json:"groups,omitempty"`
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	q := queryParser{values: r.URL.Query()}
	params := s.analyzer.Options().Params
	params.MinMarketSize = q.intVal("min_market_size", params.MinMarketSize)
	params.MaxCoveragePercent = q.floatVal("max_coverage", params.MaxCoveragePercent)
	params.PrioritizeEmerging = q.boolVal("prioritize", params.PrioritizeEmerging)
	by := strings.ToLower(q.get("by"))
	if by != "" && by != "category" && by != "region" {
		q.problems = append(q.problems, "by must be category or region")
	}
	req := analysis.Request{Kind: "api:opportunities", Filter: q.filter(), Params: &params}
	if q.failed(w) {
		return
	}

	report, ok := s.run(w, r, req)
	if !ok {
		return
	}
	resp := opportunitiesResponse{Summary: report.Summary, Params: params}
	switch by {
	case "category":
		resp.Groups = opportunity.GroupByCategory(report.Opportunities)
	case "region":
		resp.Groups = region.GroupByRegion(report.Opportunities, s.analyzer.Options().Regions)
	default:
		resp.Opportunities = report.Opportunities
		if resp.Opportunities == nil {
			resp.Opportunities = []opportunity.Record{}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type regionsResponse struct {
	Summary model.RunSummary `json:"summary"`
	Regions []region.Summary `json:"regions"`
	Gaps    []region.Gap     `json:"gaps"`
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	q := queryParser{values: r.URL.Query()}
	req := analysis.Request{Kind: "api:regions", Filter: q.filter()}
	if q.failed(w) {
		return
	}

	report, ok := s.run(w, r, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, regionsResponse{
		Summary: report.Summary,
		Regions: report.RegionSummaries,
		Gaps:    report.RegionGaps,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run log is not configured", nil)
		return
	}
	q := queryParser{values: r.URL.Query()}
	filter := store.RunFilter{
		Status: model.RunStatus(q.get("status")),
		Kind:   q.get("kind"),
		Limit:  q.intVal("limit", 50),
		Offset: q.intVal("offset", 0),
	}
	if q.failed(w) {
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs", nil)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// run executes one analysis and writes the error response on failure.
func (s *Server) run(w http.ResponseWriter, r *http.Request, req analysis.Request) (*analysis.Report, bool) {
	report, err := s.analyzer.Run(r.Context(), req)
	if err == nil {
		return report, true
	}

	var ve *config.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, "invalid configuration", map[string]any{"problems": ve.Problems})
		return nil, false
	}
	if dse, ok := leadsource.AsDataSourceError(err); ok {
		status := http.StatusBadGateway
		if dse.Timeout {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, "lead source failed", map[string]any{
			"pages":   dse.Pages,
			"rows":    dse.Rows,
			"timeout": dse.Timeout,
			"cause":   dse.Err.Error(),
		})
		return nil, false
	}

	zap.L().Error("api: analysis failed", zap.String("kind", req.Kind), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "analysis failed", nil)
	return nil, false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, details map[string]any) {
	body := map[string]any{"error": msg}
	for k, v := range details {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// queryParser collects query parameter problems so a request reports all of
// them at once.
type queryParser struct {
	values   map[string][]string
	problems []string
}

func (q *queryParser) get(key string) string {
	if v := q.values[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (q *queryParser) intVal(key string, def int) int {
	raw := q.get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.problems = append(q.problems, key+" must be an integer")
		return def
	}
	return n
}

func (q *queryParser) floatVal(key string, def float64) float64 {
	raw := q.get(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		q.problems = append(q.problems, key+" must be a number")
		return def
	}
	return f
}

func (q *queryParser) boolVal(key string, def bool) bool {
	raw := q.get(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		q.problems = append(q.problems, key+" must be true or false")
		return def
	}
	return b
}

func (q *queryParser) filter() leadsource.Filter {
	return leadsource.Filter{
		City:            q.get("city"),
		State:           q.get("state"),
		Category:        q.get("category"),
		CategoryNotNull: q.boolVal("categorized", false),
		OrderBy:         q.get("order"),
	}
}

// failed writes a 400 when any parameter was malformed.
func (q *queryParser) failed(w http.ResponseWriter) bool {
	if len(q.problems) == 0 {
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid query parameters", map[string]any{"problems": q.problems})
	return true
}
