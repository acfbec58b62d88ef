package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"splitlens/internal/analytics"
	"splitlens/internal/core"
	applog "splitlens/internal/log"
	"splitlens/internal/session"
)

// serveCached runs compute and caches the marshaled response, keyed by
// session, route and query. Mutating endpoints invalidate per session.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, compute func() (any, error)) {
	sessionID := r.PathValue("id")
	key := cacheKey(sessionID, r.URL.Path, r.URL.Query())

	if body, found := s.respCache.Get(key); found {
		w.Header().Set("X-Cache", "hit")
		writeJSONBytes(w, http.StatusOK, body)
		return
	}

	out, err := compute()
	if err != nil {
		s.writeAnalyticsError(w, r, err)
		return
	}

	body, err := json.Marshal(out)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to marshal response", "error", err)
		writeError(w, http.StatusInternalServerError, "encode response")
		return
	}

	s.respCache.Set(key, body)
	w.Header().Set("X-Cache", "miss")
	writeJSONBytes(w, http.StatusOK, body)
}

func (s *Server) writeAnalyticsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, core.ErrInvalidDate), errors.Is(err, core.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.structured.LogError(r.Context(), "Analytics request failed", err, applog.ComponentHTTP, applog.OpAnalyze,
			applog.LogFields{applog.FieldPath: r.URL.Path})
		writeError(w, http.StatusInternalServerError, "analytics request failed")
	}
}

func (s *Server) handleSpendingOverTime(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	interval := analytics.Interval(strings.TrimSpace(r.URL.Query().Get("interval")))
	if interval == "" {
		interval = analytics.IntervalMonth
	}
	if !interval.Valid() {
		writeError(w, http.StatusBadRequest, "interval must be day, week or month")
		return
	}

	s.serveCached(w, r, func() (any, error) {
		return s.analytics.SpendingOverTime(r.Context(), r.PathValue("id"), f, interval)
	})
}

func (s *Server) handleSpendingBy(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dim := analytics.Dimension(strings.TrimSpace(r.URL.Query().Get("dimension")))
	if dim == "" {
		dim = analytics.DimensionCategory
	}
	if !dim.Valid() {
		writeError(w, http.StatusBadRequest, "dimension must be category, store or person")
		return
	}

	s.serveCached(w, r, func() (any, error) {
		return s.analytics.SpendingBy(r.Context(), r.PathValue("id"), f, dim)
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, pageSize, err := parsePagination(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.serveCached(w, r, func() (any, error) {
		return s.analytics.Transactions(r.Context(), r.PathValue("id"), f, page, pageSize)
	})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(f core.AnalysisFilters) (any, error) {
		return s.analytics.Balances(r.Context(), r.PathValue("id"), f)
	})
}

func (s *Server) handlePaymentPatterns(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(f core.AnalysisFilters) (any, error) {
		return s.analytics.PaymentPatterns(r.Context(), r.PathValue("id"), f)
	})
}

func (s *Server) handleStoreAnalytics(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(f core.AnalysisFilters) (any, error) {
		return s.analytics.StoreVisits(r.Context(), r.PathValue("id"), f)
	})
}

func (s *Server) handleCategoryTrends(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(f core.AnalysisFilters) (any, error) {
		return s.analytics.CategoryTrends(r.Context(), r.PathValue("id"), f)
	})
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	startDate := strings.TrimSpace(r.URL.Query().Get("startDate"))
	endDate := strings.TrimSpace(r.URL.Query().Get("endDate"))
	if (startDate != "" && !core.ValidDate(startDate)) || (endDate != "" && !core.ValidDate(endDate)) {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	s.serveCached(w, r, func() (any, error) {
		return s.analytics.Heatmap(r.Context(), r.PathValue("id"), startDate, endDate)
	})
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(f core.AnalysisFilters) (any, error) {
		return s.analytics.Budget(r.Context(), r.PathValue("id"), f)
	})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(f core.AnalysisFilters) (any, error) {
		return s.analytics.Anomalies(r.Context(), r.PathValue("id"), f)
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.serveFiltered(w, r, func(f core.AnalysisFilters) (any, error) {
		return s.analytics.DashboardSummary(r.Context(), r.PathValue("id"), f)
	})
}

// serveFiltered is serveCached for endpoints whose only parameters are
// the shared analysis filters.
func (s *Server) serveFiltered(w http.ResponseWriter, r *http.Request, compute func(core.AnalysisFilters) (any, error)) {
	f, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.serveCached(w, r, func() (any, error) {
		return compute(f)
	})
}
