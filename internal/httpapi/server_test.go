package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/engine"
	"nathanbeddoewebdev/carbonq/internal/executor"
	"nathanbeddoewebdev/carbonq/internal/history"
	"nathanbeddoewebdev/carbonq/internal/telemetry"
)

var t0 = time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC)

type fakeEngine struct {
	mu        sync.Mutex
	out       *engine.Outcome
	err       error
	compare   map[domain.Strategy]domain.ExecutionMetrics
	pending   []domain.DeferredRequest
	cancelled []string

	lastSQL     string
	lastUrgency domain.Urgency
	lastOrigin  string
	lastOpts    int
}

func (f *fakeEngine) Execute(ctx context.Context, query string, urgency domain.Urgency, opts ...engine.ExecuteOption) (*engine.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSQL = query
	f.lastUrgency = urgency
	f.lastOrigin = history.OriginFromContext(ctx)
	f.lastOpts = len(opts)
	return f.out, f.err
}

func (f *fakeEngine) CompareStrategies(ctx context.Context, query string) (map[domain.Strategy]domain.ExecutionMetrics, error) {
	return f.compare, f.err
}

func (f *fakeEngine) Pending() []domain.DeferredRequest { return f.pending }

func (f *fakeEngine) Cancel(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.pending {
		if p.ID == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			f.cancelled = append(f.cancelled, id)
			return true
		}
	}
	return false
}

type fakeCarbon struct {
	reading domain.CarbonReading
	hours   int
}

func (f *fakeCarbon) Zone() string { return "US-CAL-CISO" }

func (f *fakeCarbon) Current(context.Context) domain.CarbonReading { return f.reading }

func (f *fakeCarbon) Forecast(_ context.Context, hours int) []domain.ForecastPoint {
	f.hours = hours
	points := make([]domain.ForecastPoint, hours)
	for i := range points {
		points[i] = domain.ForecastPoint{Timestamp: t0.Add(time.Duration(i+1) * time.Hour), Value: 300}
	}
	return points
}

type fakeHistory struct{ records []history.Record }

func (f *fakeHistory) List(limit int) ([]history.Record, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func newTestServer(eng *fakeEngine, opts ...Option) (http.Handler, *fakeCarbon) {
	carbon := &fakeCarbon{reading: domain.NewCarbonReading(400, t0, domain.SourceLive)}
	return New(eng, carbon, opts...).Router(), carbon
}

func doRequest(h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func executedOutcome() *engine.Outcome {
	return &engine.Outcome{
		Result:   &executor.Result{Columns: []string{"n"}, Rows: [][]any{{int64(1)}}},
		Metrics:  &domain.ExecutionMetrics{Duration: time.Second, EnergyJoules: 3600, Tier: domain.TierEstimated},
		Decision: domain.Decision{Strategy: domain.StrategyBalanced, Reason: "medium urgency"},
		Carbon:   domain.NewCarbonReading(500, t0, domain.SourceLive),
	}
}

func TestQuery_Executes(t *testing.T) {
	eng := &fakeEngine{out: executedOutcome()}
	h, _ := newTestServer(eng)

	rec := doRequest(h, http.MethodPost, "/v1/queries", map[string]any{"sql": "SELECT 1", "urgency": "high", "explain": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "balanced", body["decision"].(map[string]any)["strategy"])
	// 3600 J at 500 g/kWh.
	assert.InDelta(t, 0.5, body["carbon_grams"], 1e-9)
	assert.Equal(t, "SELECT 1", eng.lastSQL)
	assert.Equal(t, domain.UrgencyHigh, eng.lastUrgency)
	assert.Equal(t, history.OriginAPI, eng.lastOrigin)
	// detach + explain
	assert.Equal(t, 2, eng.lastOpts)
}

func TestQuery_DefaultsToMediumUrgency(t *testing.T) {
	eng := &fakeEngine{out: executedOutcome()}
	h, _ := newTestServer(eng)

	rec := doRequest(h, http.MethodPost, "/v1/queries", map[string]any{"sql": "SELECT 1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.UrgencyMedium, eng.lastUrgency)
	assert.Equal(t, 1, eng.lastOpts)
}

func TestQuery_DeferredReturnsAccepted(t *testing.T) {
	req := domain.DeferredRequest{ID: uuid.NewString(), SQL: "SELECT 1", Urgency: domain.UrgencyBatch, DueAt: t0.Add(3 * time.Hour), Attempts: 1}
	eng := &fakeEngine{out: &engine.Outcome{
		Decision: domain.Decision{ShouldDefer: true, DeferMinutes: 180},
		Carbon:   domain.NewCarbonReading(620, t0, domain.SourceLive),
		Deferred: &req,
	}}
	h, _ := newTestServer(eng)

	rec := doRequest(h, http.MethodPost, "/v1/queries", map[string]any{"sql": "SELECT 1", "urgency": "batch"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, req.ID, body["deferred"].(map[string]any)["id"])
	assert.NotContains(t, body, "carbon_grams")
	assert.NotContains(t, body, "metrics")
}

func TestQuery_BadRequests(t *testing.T) {
	h, _ := newTestServer(&fakeEngine{out: executedOutcome()})

	tests := []struct {
		name string
		body any
	}{
		{"malformed", "{not json"},
		{"missing sql", map[string]any{"urgency": "low"}},
		{"blank sql", map[string]any{"sql": "   "}},
		{"unknown urgency", map[string]any{"sql": "SELECT 1", "urgency": "someday"}},
		{"negative timeout", map[string]any{"sql": "SELECT 1", "timeout_ms": -5}},
		{"unknown field", map[string]any{"sql": "SELECT 1", "priority": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(h, http.MethodPost, "/v1/queries", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "CARBONQ_BAD_REQUEST", decode(t, rec)["code"])
		})
	}
}

func TestQuery_ExecutionFailure(t *testing.T) {
	out := executedOutcome()
	out.Result = nil
	eng := &fakeEngine{out: out, err: fmt.Errorf("%w: no such table: orders", domain.ErrExecutionFailed)}
	h, _ := newTestServer(eng)

	rec := doRequest(h, http.MethodPost, "/v1/queries", map[string]any{"sql": "SELECT * FROM orders"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode(t, rec)
	assert.Contains(t, body["error"], "no such table")
	assert.Contains(t, body, "metrics")
}

func TestQuery_TimeoutReturnsGatewayTimeout(t *testing.T) {
	out := executedOutcome()
	out.Result = nil
	out.Metrics.Partial = true
	eng := &fakeEngine{out: out, err: fmt.Errorf("%w: %w", domain.ErrExecutionFailed, context.DeadlineExceeded)}
	h, _ := newTestServer(eng)

	rec := doRequest(h, http.MethodPost, "/v1/queries", map[string]any{"sql": "SELECT 1", "timeout_ms": 10})
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, true, decode(t, rec)["metrics"].(map[string]any)["partial"])
}

func TestCompare(t *testing.T) {
	eng := &fakeEngine{compare: map[domain.Strategy]domain.ExecutionMetrics{
		domain.StrategyFast:      {EnergyJoules: 7200},
		domain.StrategyEfficient: {EnergyJoules: 1800},
		domain.StrategyBalanced:  {EnergyJoules: 3600},
	}}
	h, _ := newTestServer(eng)

	rec := doRequest(h, http.MethodPost, "/v1/queries/compare", map[string]any{"sql": "SELECT 1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	strategies := decode(t, rec)["strategies"].(map[string]any)
	require.Len(t, strategies, 3)
	// Current reading is 400 g/kWh.
	assert.InDelta(t, 0.8, strategies["fast"].(map[string]any)["carbon_grams"], 1e-9)
	assert.InDelta(t, 0.2, strategies["efficient"].(map[string]any)["carbon_grams"], 1e-9)
	assert.InDelta(t, 0.4, strategies["balanced"].(map[string]any)["carbon_grams"], 1e-9)
}

func TestCompare_Failure(t *testing.T) {
	eng := &fakeEngine{err: fmt.Errorf("%w: boom", domain.ErrExecutionFailed)}
	h, _ := newTestServer(eng)

	rec := doRequest(h, http.MethodPost, "/v1/queries/compare", map[string]any{"sql": "SELECT 1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCarbonCurrent(t *testing.T) {
	h, _ := newTestServer(&fakeEngine{})

	rec := doRequest(h, http.MethodGet, "/v1/carbon/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "US-CAL-CISO", body["zone"])
	reading := body["reading"].(map[string]any)
	assert.Equal(t, 400.0, reading["value"])
	assert.Equal(t, "live", reading["source"])
}

func TestCarbonForecast(t *testing.T) {
	h, carbon := newTestServer(&fakeEngine{})

	rec := doRequest(h, http.MethodGet, "/v1/carbon/forecast", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultForecastHours, carbon.hours)
	assert.Len(t, decode(t, rec)["forecast"], 24)

	rec = doRequest(h, http.MethodGet, "/v1/carbon/forecast?hours=6", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["forecast"], 6)

	for _, bad := range []string{"0", "73", "soon", "-1"} {
		rec = doRequest(h, http.MethodGet, "/v1/carbon/forecast?hours="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "hours=%s", bad)
	}
}

func TestDeferredListAndCancel(t *testing.T) {
	id := uuid.NewString()
	eng := &fakeEngine{pending: []domain.DeferredRequest{{ID: id, SQL: "SELECT 1", Urgency: domain.UrgencyLow, DueAt: t0}}}
	h, _ := newTestServer(eng)

	rec := doRequest(h, http.MethodGet, "/v1/deferred", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["deferred"], 1)

	rec = doRequest(h, http.MethodDelete, "/v1/deferred/"+id, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{id}, eng.cancelled)

	rec = doRequest(h, http.MethodDelete, "/v1/deferred/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(h, http.MethodDelete, "/v1/deferred/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(h, http.MethodGet, "/v1/deferred", nil)
	assert.Equal(t, []any{}, decode(t, rec)["deferred"])
}

func TestHistory(t *testing.T) {
	h, _ := newTestServer(&fakeEngine{})
	rec := doRequest(h, http.MethodGet, "/v1/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	hist := &fakeHistory{records: []history.Record{{ID: 2, SQL: "SELECT 2"}, {ID: 1, SQL: "SELECT 1"}}}
	h, _ = newTestServer(&fakeEngine{}, WithHistory(hist))

	rec = doRequest(h, http.MethodGet, "/v1/history?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	executions := decode(t, rec)["executions"].([]any)
	require.Len(t, executions, 1)
	assert.Equal(t, "SELECT 2", executions[0].(map[string]any)["sql"])

	rec = doRequest(h, http.MethodGet, "/v1/history?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(&fakeEngine{})
	rec := doRequest(h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	m := telemetry.New()
	h, _ = newTestServer(&fakeEngine{}, WithMetrics(m))
	doRequest(h, http.MethodGet, "/v1/carbon/current", nil)

	rec = doRequest(h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `carbonq_http_requests_total{route="/v1/carbon/current",status="200"} 1`)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(&fakeEngine{pending: []domain.DeferredRequest{{ID: "a"}}})
	rec := doRequest(h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, 1.0, body["pending"])
}
