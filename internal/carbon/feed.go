package carbon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/retry"
)

// DefaultBaseURL is the public Electricity Maps API.
const DefaultBaseURL = "https://api.electricitymap.org"

// ErrMalformedPayload indicates the feed answered with data that could not
// be decoded into intensities.
var ErrMalformedPayload = errors.New("malformed carbon feed payload")

// Feed is the boundary to an external carbon intensity provider.
type Feed interface {
	// Latest returns the current intensity for zone.
	Latest(ctx context.Context, zone string) (domain.CarbonReading, error)

	// Forecast returns up to hours hourly points for zone, ordered by time.
	Forecast(ctx context.Context, zone string, hours int) ([]domain.ForecastPoint, error)
}

// StatusError is returned for non-2xx feed responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("carbon feed returned %s", e.Status)
}

// StatusCode implements retry.StatusCoder.
func (e *StatusError) StatusCode() int {
	return e.Code
}

// ElectricityMapsConfig configures the Electricity Maps client.
type ElectricityMapsConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	Retry      retry.Config
	HTTPClient *http.Client
}

// ElectricityMapsFeed reads intensities from the Electricity Maps v3 API.
type ElectricityMapsFeed struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	retry   retry.Config
	client  *http.Client
}

// NewElectricityMapsFeed returns a feed client, applying defaults for
// missing fields.
func NewElectricityMapsFeed(cfg ElectricityMapsConfig) *ElectricityMapsFeed {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	rc := cfg.Retry
	if rc.MaxAttempts <= 0 {
		rc = retry.DefaultConfig()
	}
	return &ElectricityMapsFeed{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		timeout: timeout,
		retry:   rc,
		client:  client,
	}
}

type intensityPayload struct {
	Zone            string   `json:"zone"`
	CarbonIntensity *float64 `json:"carbonIntensity"`
	Datetime        string   `json:"datetime"`
}

type forecastPayload struct {
	Zone     string             `json:"zone"`
	Forecast []intensityPayload `json:"forecast"`
}

// Latest implements Feed.
func (f *ElectricityMapsFeed) Latest(ctx context.Context, zone string) (domain.CarbonReading, error) {
	var payload intensityPayload
	if err := f.get(ctx, "/v3/carbon-intensity/latest", zone, &payload); err != nil {
		return domain.CarbonReading{}, err
	}
	value, ts, err := payload.decode()
	if err != nil {
		return domain.CarbonReading{}, err
	}
	return domain.NewCarbonReading(value, ts, domain.SourceLive), nil
}

// Forecast implements Feed.
func (f *ElectricityMapsFeed) Forecast(ctx context.Context, zone string, hours int) ([]domain.ForecastPoint, error) {
	var payload forecastPayload
	if err := f.get(ctx, "/v3/carbon-intensity/forecast", zone, &payload); err != nil {
		return nil, err
	}
	if payload.Forecast == nil {
		return nil, fmt.Errorf("%w: missing forecast array", ErrMalformedPayload)
	}

	points := make([]domain.ForecastPoint, 0, len(payload.Forecast))
	for _, p := range payload.Forecast {
		value, ts, err := p.decode()
		if err != nil {
			return nil, err
		}
		points = append(points, domain.ForecastPoint{Timestamp: ts, Value: value})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	if hours > 0 && len(points) > hours {
		points = points[:hours]
	}
	return points, nil
}

func (p intensityPayload) decode() (float64, time.Time, error) {
	if p.CarbonIntensity == nil {
		return 0, time.Time{}, fmt.Errorf("%w: missing carbonIntensity", ErrMalformedPayload)
	}
	if *p.CarbonIntensity < 0 {
		return 0, time.Time{}, fmt.Errorf("%w: negative intensity %g", ErrMalformedPayload, *p.CarbonIntensity)
	}
	ts, err := time.Parse(time.RFC3339, p.Datetime)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: datetime %q", ErrMalformedPayload, p.Datetime)
	}
	return *p.CarbonIntensity, ts.UTC(), nil
}

func (f *ElectricityMapsFeed) get(ctx context.Context, path, zone string, dest any) error {
	endpoint := f.baseURL + path + "?" + url.Values{"zone": {zone}}.Encode()

	return retry.Do(ctx, f.retry, retry.IsRetryable, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("carbon feed build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if f.apiKey != "" {
			req.Header.Set("auth-token", f.apiKey)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("carbon feed request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return &StatusError{Code: resp.StatusCode, Status: resp.Status}
		}
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return nil
	})
}
