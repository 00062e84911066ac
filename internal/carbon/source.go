// Package carbon provides the grid carbon intensity signal: a live feed
// behind a TTL cache, with a deterministic historical model as fallback.
package carbon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"nathanbeddoewebdev/carbonq/internal/domain"
	"nathanbeddoewebdev/carbonq/internal/swrcache"
)

const (
	// DefaultZone is used when no zone is configured.
	DefaultZone = "US-CAL-CISO"

	// feedHorizon is how many forecast hours are requested from the feed
	// and cached, independent of the caller's horizon.
	feedHorizon = 72
)

// Config configures a Source.
type Config struct {
	Zone string

	// CacheTTL bounds how long a live value is served without refetching.
	CacheTTL time.Duration

	// MaxStale bounds how long past the TTL a last-known-good value may be
	// served when refetching fails. Zero serves it regardless of age.
	MaxStale time.Duration

	// FallbackToHistorical enables the historical model when no live or
	// stale value is available. When disabled, a zero reading tagged
	// historical and stale is returned instead.
	FallbackToHistorical bool

	// CacheDir mirrors cache entries to disk when set.
	CacheDir string
}

// Source serves current and forecast intensities. It is safe for
// concurrent use; refreshes for the same signal are coalesced.
type Source struct {
	feed     Feed
	zone     string
	fallback bool
	logger   *zap.Logger
	now      func() time.Time

	latest   *swrcache.Cache[domain.CarbonReading]
	forecast *swrcache.Cache[[]domain.ForecastPoint]
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger used for degradation events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for testing.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

// NewSource returns a Source reading from feed. A nil feed always serves
// the historical model.
func NewSource(feed Feed, cfg Config, opts ...Option) *Source {
	s := &Source{
		feed:     feed,
		zone:     strings.TrimSpace(cfg.Zone),
		fallback: cfg.FallbackToHistorical,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	if s.zone == "" {
		s.zone = DefaultZone
	}
	for _, opt := range opts {
		opt(s)
	}

	cacheOpts := []swrcache.Option{swrcache.WithClock(s.now)}
	if cfg.CacheDir != "" {
		cacheOpts = append(cacheOpts, swrcache.WithDir(cfg.CacheDir))
	}
	s.latest = swrcache.New[domain.CarbonReading](cfg.CacheTTL, cfg.MaxStale, cacheOpts...)
	s.forecast = swrcache.New[[]domain.ForecastPoint](cfg.CacheTTL, cfg.MaxStale, cacheOpts...)
	return s
}

// Zone returns the grid zone this source reports on.
func (s *Source) Zone() string {
	return s.zone
}

// Current returns the current intensity. It never fails: feed errors
// degrade to a stale cached value or the historical model, visible via the
// reading's Source and Stale fields.
func (s *Source) Current(ctx context.Context) domain.CarbonReading {
	res, err := s.latest.GetOrFetch(ctx, s.key("latest"), func(ctx context.Context) (domain.CarbonReading, error) {
		if s.feed == nil {
			return domain.CarbonReading{}, domain.ErrSignalUnavailable
		}
		r, err := s.feed.Latest(ctx, s.zone)
		if err != nil {
			return domain.CarbonReading{}, fmt.Errorf("%w: %v", domain.ErrSignalUnavailable, err)
		}
		return r, nil
	})
	if err == nil {
		reading := res.Data
		reading.Stale = res.Stale
		if res.Hit {
			s.logger.Debug("carbon reading served from cache",
				zap.String("zone", s.zone),
				zap.Time("fetched_at", res.FetchedAt),
			)
		}
		if res.Stale {
			s.logger.Warn("serving stale carbon reading",
				zap.String("zone", s.zone),
				zap.Time("fetched_at", res.FetchedAt),
			)
		}
		return reading
	}

	s.logDegraded("current", err)
	now := s.now()
	if !s.fallback {
		r := domain.NewCarbonReading(0, now, domain.SourceHistorical)
		r.Stale = true
		return r
	}
	return HistoricalReading(s.zone, now)
}

// Forecast returns hours hourly estimates starting at the next full hour.
// Hours covered by the live feed use its values; the rest come from the
// historical curve. It returns nil for a non-positive horizon.
func (s *Source) Forecast(ctx context.Context, hours int) []domain.ForecastPoint {
	if hours <= 0 {
		return nil
	}

	start := s.now().UTC().Truncate(time.Hour).Add(time.Hour)
	out := HistoricalForecast(s.zone, start, hours)

	res, err := s.forecast.GetOrFetch(ctx, s.key("forecast"), func(ctx context.Context) ([]domain.ForecastPoint, error) {
		if s.feed == nil {
			return nil, domain.ErrSignalUnavailable
		}
		points, err := s.feed.Forecast(ctx, s.zone, feedHorizon)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrSignalUnavailable, err)
		}
		return points, nil
	})
	if err != nil {
		s.logDegraded("forecast", err)
		if !s.fallback {
			for i := range out {
				out[i].Value = 0
			}
		}
		return out
	}

	live := make(map[int64]float64, len(res.Data))
	for _, p := range res.Data {
		live[p.Timestamp.UTC().Truncate(time.Hour).Unix()] = p.Value
	}
	for i := range out {
		if v, ok := live[out[i].Timestamp.Unix()]; ok {
			out[i].Value = v
		}
	}
	return out
}

// Invalidate drops cached live values so the next call refetches.
func (s *Source) Invalidate() error {
	if err := s.latest.Invalidate(s.key("latest")); err != nil {
		return err
	}
	return s.forecast.Invalidate(s.key("forecast"))
}

func (s *Source) key(kind string) string {
	return kind + "_" + strings.ToLower(s.zone)
}

func (s *Source) logDegraded(signal string, err error) {
	if s.feed == nil {
		s.logger.Debug("no carbon feed configured, using historical model",
			zap.String("signal", signal), zap.String("zone", s.zone))
		return
	}
	s.logger.Warn("carbon feed unavailable, using historical model",
		zap.String("signal", signal),
		zap.String("zone", s.zone),
		zap.Error(err),
	)
}
