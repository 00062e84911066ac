package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"nathanbeddoewebdev/carbonq/internal/domain"
)

func TestObserveDecision(t *testing.T) {
	m := New()
	m.ObserveDecision(domain.UrgencyMedium, domain.Decision{Strategy: domain.StrategyBalanced})
	m.ObserveDecision(domain.UrgencyMedium, domain.Decision{Strategy: domain.StrategyBalanced})
	m.ObserveDecision(domain.UrgencyBatch, domain.Decision{ShouldDefer: true, DeferMinutes: 60})

	if got := testutil.ToFloat64(m.decisions.WithLabelValues("balanced", "medium", "false")); got != 2 {
		t.Errorf("balanced decisions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.decisions.WithLabelValues(domain.StrategyNone.String(), "batch", "true")); got != 1 {
		t.Errorf("deferred decisions = %v, want 1", got)
	}
}

func TestObserveExecution(t *testing.T) {
	m := New()
	metrics := domain.ExecutionMetrics{Duration: 2 * time.Second, EnergyJoules: 3600}
	m.ObserveExecution(domain.StrategyEfficient, metrics, 500)
	m.ObserveExecution(domain.StrategyEfficient, metrics, 500)

	if got := testutil.ToFloat64(m.energy.WithLabelValues("efficient")); got != 7200 {
		t.Errorf("energy = %v, want 7200", got)
	}
	// 3600 J is 1 Wh; at 500 g/kWh that is 0.5 g per run.
	if got := testutil.ToFloat64(m.carbonGrams.WithLabelValues("efficient")); got != 1 {
		t.Errorf("carbon grams = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.duration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestCarbonAndQueueGauges(t *testing.T) {
	m := New()
	m.ObserveCarbon(domain.NewCarbonReading(420, time.Now(), domain.SourceLive))
	m.ObserveCarbon(domain.NewCarbonReading(310, time.Now(), domain.SourceLive))
	m.SetQueueDepth(3)

	if got := testutil.ToFloat64(m.intensity.WithLabelValues("live")); got != 310 {
		t.Errorf("intensity = %v, want 310", got)
	}
	if got := testutil.ToFloat64(m.queueDepth); got != 3 {
		t.Errorf("queue depth = %v, want 3", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCarbon(domain.CarbonReading{})
	m.ObserveDecision(domain.UrgencyLow, domain.Decision{})
	m.ObserveExecution(domain.StrategyFast, domain.ExecutionMetrics{}, 1)
	m.SetQueueDepth(1)
	m.ObserveHTTP("/", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandlerExposition(t *testing.T) {
	m := New()
	m.SetQueueDepth(2)
	m.ObserveHTTP("/v1/queries", 202, 5*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"carbonq_deferred_queue_depth 2",
		`carbonq_http_requests_total{route="/v1/queries",status="202"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
