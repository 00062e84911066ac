// Package httpapi exposes the engine over HTTP for dashboards and other
// local consumers.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/engine"
	"nathanbeddoewebdev/carbonq/internal/history"
	"nathanbeddoewebdev/carbonq/internal/telemetry"
)

const (
	defaultForecastHours = 24
	maxForecastHours     = 72
	defaultHistoryLimit  = 50
	maxBodyBytes         = 1 << 20
)

// Engine is the subset of *engine.Engine the API drives.
type Engine interface {
	Execute(ctx context.Context, query string, urgency domain.Urgency, opts ...engine.ExecuteOption) (*engine.Outcome, error)
	CompareStrategies(ctx context.Context, query string) (map[domain.Strategy]domain.ExecutionMetrics, error)
	Pending() []domain.DeferredRequest
	Cancel(id string) bool
}

// CarbonSource serves the current and forecast grid intensity.
type CarbonSource interface {
	Zone() string
	Current(ctx context.Context) domain.CarbonReading
	Forecast(ctx context.Context, hours int) []domain.ForecastPoint
}

// HistoryLister reads recent executions.
type HistoryLister interface {
	List(limit int) ([]history.Record, error)
}

type Server struct {
	engine  Engine
	carbon  CarbonSource
	history HistoryLister
	metrics *telemetry.Metrics
	logger  *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves /metrics from m and records per-route request metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHistory enables GET /v1/history.
func WithHistory(h HistoryLister) Option {
	return func(s *Server) { s.history = h }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(eng Engine, carbon CarbonSource, opts ...Option) *Server {
	s := &Server{engine: eng, carbon: carbon, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/queries", s.handleQuery)
		r.Post("/queries/compare", s.handleCompare)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/carbon/current", s.handleCarbonCurrent)
			r.Get("/carbon/forecast", s.handleCarbonForecast)
			r.Get("/deferred", s.handleListDeferred)
			r.Delete("/deferred/{id}", s.handleCancelDeferred)
			r.Get("/history", s.handleHistory)
		})
	})

	return r
}

// observe logs each request and records it against its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.ObserveHTTP(route, status, elapsed)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"zone":    s.carbon.Zone(),
		"pending": len(s.engine.Pending()),
		"time":    time.Now().UTC().Format(time.RFC3339Nano),
	})
}

type queryRequest struct {
	SQL       string `json:"sql"`
	Urgency   string `json:"urgency"`
	Explain   bool   `json:"explain"`
	TimeoutMs int    `json:"timeout_ms"`
}

type queryResponse struct {
	*engine.Outcome
	CarbonGrams *float64 `json:"carbon_grams,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "CARBONQ_BAD_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		respondError(w, http.StatusBadRequest, "CARBONQ_BAD_REQUEST", "sql is required")
		return
	}
	urgency := domain.UrgencyMedium
	if req.Urgency != "" {
		u, err := domain.ParseUrgency(req.Urgency)
		if err != nil {
			respondError(w, http.StatusBadRequest, "CARBONQ_BAD_REQUEST", err.Error())
			return
		}
		urgency = u
	}
	if req.TimeoutMs < 0 {
		respondError(w, http.StatusBadRequest, "CARBONQ_BAD_REQUEST", "timeout_ms must not be negative")
		return
	}

	// Deferred requests outlive this HTTP request.
	opts := []engine.ExecuteOption{engine.WithDetach()}
	if req.Explain {
		opts = append(opts, engine.WithExplain())
	}
	if req.TimeoutMs > 0 {
		opts = append(opts, engine.WithTimeout(time.Duration(req.TimeoutMs)*time.Millisecond))
	}

	ctx := history.WithOrigin(r.Context(), history.OriginAPI)
	out, err := s.engine.Execute(ctx, req.SQL, urgency, opts...)
	if out == nil {
		respondError(w, http.StatusUnprocessableEntity, "CARBONQ_EXECUTION_FAILED", errMessage(err))
		return
	}

	resp := queryResponse{Outcome: out}
	if out.Metrics != nil {
		grams := out.Metrics.CarbonGrams(out.Carbon.Value)
		resp.CarbonGrams = &grams
	}

	switch {
	case err != nil:
		resp.Error = err.Error()
		status := http.StatusUnprocessableEntity
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		respondJSON(w, status, resp)
	case out.Deferred != nil:
		respondJSON(w, http.StatusAccepted, resp)
	default:
		respondJSON(w, http.StatusOK, resp)
	}
}

type compareRequest struct {
	SQL string `json:"sql"`
}

type compareEntry struct {
	domain.ExecutionMetrics
	CarbonGrams float64 `json:"carbon_grams"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "CARBONQ_BAD_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		respondError(w, http.StatusBadRequest, "CARBONQ_BAD_REQUEST", "sql is required")
		return
	}

	ctx := history.WithOrigin(r.Context(), history.OriginAPI)
	results, err := s.engine.CompareStrategies(ctx, req.SQL)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "CARBONQ_EXECUTION_FAILED", err.Error())
		return
	}

	reading := s.carbon.Current(ctx)
	out := make(map[string]compareEntry, len(results))
	for strat, m := range results {
		out[strat.String()] = compareEntry{ExecutionMetrics: m, CarbonGrams: m.CarbonGrams(reading.Value)}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"carbon":     reading,
		"strategies": out,
	})
}

func (s *Server) handleCarbonCurrent(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"zone":    s.carbon.Zone(),
		"reading": s.carbon.Current(r.Context()),
	})
}

func (s *Server) handleCarbonForecast(w http.ResponseWriter, r *http.Request) {
	hours := defaultForecastHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxForecastHours {
			respondError(w, http.StatusBadRequest, "CARBONQ_BAD_REQUEST", "hours must be an integer between 1 and 72")
			return
		}
		hours = n
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"zone":     s.carbon.Zone(),
		"hours":    hours,
		"forecast": s.carbon.Forecast(r.Context(), hours),
	})
}

func (s *Server) handleListDeferred(w http.ResponseWriter, r *http.Request) {
	pending := s.engine.Pending()
	if pending == nil {
		pending = []domain.DeferredRequest{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"deferred": pending})
}

func (s *Server) handleCancelDeferred(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "CARBONQ_BAD_REQUEST", "invalid request id")
		return
	}
	if !s.engine.Cancel(id) {
		respondError(w, http.StatusNotFound, "CARBONQ_NOT_FOUND", "deferred request not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusNotFound, "CARBONQ_NOT_FOUND", "history is not enabled")
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "CARBONQ_BAD_REQUEST", "limit must be a positive integer")
			return
		}
		limit = n
	}
	records, err := s.history.List(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "CARBONQ_INTERNAL", err.Error())
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"executions": records})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
		"code":  code,
	})
}

func errMessage(err error) string {
	if err == nil {
		return "execution failed"
	}
	return err.Error()
}
