package carbon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/retry"
)

// newTestFeed returns a feed pointed at srv with fast, single-shot retries.
func newTestFeed(url string) *ElectricityMapsFeed {
	return NewElectricityMapsFeed(ElectricityMapsConfig{
		BaseURL: url,
		APIKey:  "test-key",
		Timeout: time.Second,
		Retry:   retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
}

func TestLatest_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/carbon-intensity/latest" {
			t.Errorf("expected latest path, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("zone"); got != "DE" {
			t.Errorf("expected zone DE, got %q", got)
		}
		if got := r.Header.Get("auth-token"); got != "test-key" {
			t.Errorf("expected auth-token header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"zone":"DE","carbonIntensity":412.5,"datetime":"2026-03-01T10:00:00Z"}`))
	}))
	t.Cleanup(srv.Close)

	got, err := newTestFeed(srv.URL).Latest(context.Background(), "DE")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := domain.CarbonReading{
		Value:     412.5,
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Source:    domain.SourceLive,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reading mismatch (-want +got):\n%s", diff)
	}
}

func TestLatest_MalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing intensity", `{"zone":"DE","datetime":"2026-03-01T10:00:00Z"}`},
		{"negative intensity", `{"zone":"DE","carbonIntensity":-3,"datetime":"2026-03-01T10:00:00Z"}`},
		{"bad datetime", `{"zone":"DE","carbonIntensity":100,"datetime":"yesterday"}`},
		{"not json", `<html>oops</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			_, err := newTestFeed(srv.URL).Latest(context.Background(), "DE")
			if !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}

func TestLatest_StatusErrorRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	feed := NewElectricityMapsFeed(ElectricityMapsConfig{
		BaseURL: srv.URL,
		Retry:   retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	_, err := feed.Latest(context.Background(), "DE")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", statusErr.Code)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestLatest_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	feed := NewElectricityMapsFeed(ElectricityMapsConfig{
		BaseURL: srv.URL,
		Retry:   retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	if _, err := feed.Latest(context.Background(), "DE"); err == nil {
		t.Fatal("expected error for 401")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}

func TestForecast_SortsAndTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/carbon-intensity/forecast" {
			t.Errorf("expected forecast path, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"zone":"DE","forecast":[
			{"carbonIntensity":300,"datetime":"2026-03-01T12:00:00Z"},
			{"carbonIntensity":100,"datetime":"2026-03-01T10:00:00Z"},
			{"carbonIntensity":200,"datetime":"2026-03-01T11:00:00Z"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	got, err := newTestFeed(srv.URL).Forecast(context.Background(), "DE", 2)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []domain.ForecastPoint{
		{Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), Value: 100},
		{Timestamp: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), Value: 200},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("forecast mismatch (-want +got):\n%s", diff)
	}
}

func TestForecast_MissingArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"zone":"DE"}`))
	}))
	t.Cleanup(srv.Close)

	_, err := newTestFeed(srv.URL).Forecast(context.Background(), "DE", 24)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}
