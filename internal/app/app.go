// Package app assembles the engine and its collaborators from a loaded
// configuration. Commands build one App per invocation and Close it on exit.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"nathanbeddoewebdev/carbonq/internal/carbon"
	"nathanbeddoewebdev/carbonq/internal/config"
	"nathanbeddoewebdev/carbonq/internal/database"
	"nathanbeddoewebdev/carbonq/internal/deferstore"
	"nathanbeddoewebdev/carbonq/internal/engine"
	"nathanbeddoewebdev/carbonq/internal/executor"
	"nathanbeddoewebdev/carbonq/internal/history"
	"nathanbeddoewebdev/carbonq/internal/logging"
	"nathanbeddoewebdev/carbonq/internal/policy"
	"nathanbeddoewebdev/carbonq/internal/profiler"
	"nathanbeddoewebdev/carbonq/internal/services/auth"
	"nathanbeddoewebdev/carbonq/internal/strategy"
	"nathanbeddoewebdev/carbonq/internal/swrcache"
	"nathanbeddoewebdev/carbonq/internal/telemetry"
)

// Options adjust how an App is built. The zero value is suitable for
// command-line use.
type Options struct {
	// Store resolves the API key when none is configured. Nil uses the OS
	// keychain.
	Store auth.Store

	// Logger overrides the logger built from the logging config.
	Logger *zap.Logger

	// Metrics registers Prometheus collectors and feeds them from the engine.
	Metrics bool

	// CacheDir overrides the carbon cache directory.
	CacheDir string

	// HTTPClient is used for the carbon feed.
	HTTPClient *http.Client
}

// App holds every long-lived component of a carbonq process.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Carbon    *carbon.Source
	Policy    *policy.Policy
	Compiler  *strategy.Compiler
	Profiler  *profiler.Profiler
	Engine    *engine.Engine
	History   *history.SQLiteRepository
	Deferred  *deferstore.SQLiteRepository
	Metrics   *telemetry.Metrics
	KeySource auth.KeySource

	target  *sql.DB
	closers []func() error
}

// New validates cfg and builds an App. On failure everything opened so far
// is closed again.
func New(cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg}
	if err := a.build(opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(opts Options) (err error) {
	cfg := a.Config

	a.Logger = opts.Logger
	if a.Logger == nil {
		if a.Logger, err = logging.New(cfg.Logging); err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { _ = a.Logger.Sync(); return nil })
	}

	store := opts.Store
	if store == nil {
		store = auth.DefaultStore()
	}
	apiKey, source, keyErr := auth.ResolveAPIKey(cfg.CarbonAPI.APIKey, store)
	if keyErr != nil {
		a.Logger.Warn("failed to read API key from keychain; using historical carbon data", zap.Error(keyErr))
	}
	a.KeySource = source

	var feed carbon.Feed
	if apiKey != "" {
		fc := cfg.FeedConfig(apiKey)
		fc.HTTPClient = opts.HTTPClient
		feed = carbon.NewElectricityMapsFeed(fc)
	}
	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = swrcache.DefaultDir()
	}
	a.Carbon = carbon.NewSource(feed, cfg.CarbonConfig(cacheDir), carbon.WithLogger(a.Logger))

	pc, err := cfg.PolicyConfig()
	if err != nil {
		return err
	}
	if a.Policy, err = policy.New(pc); err != nil {
		return err
	}
	if a.Compiler, err = strategy.New(cfg.MaxThreads()); err != nil {
		return err
	}
	a.Profiler = profiler.New(cfg.ProfilerConfig(), profiler.WithLogger(a.Logger))

	if a.History, err = history.Open(); err != nil {
		return err
	}
	a.closers = append(a.closers, a.History.Close)

	if a.Deferred, err = deferstore.Open(); err != nil {
		return err
	}
	a.closers = append(a.closers, a.Deferred.Close)

	exec, err := a.openTarget()
	if err != nil {
		return err
	}

	if opts.Metrics {
		a.Metrics = telemetry.New()
	}

	a.Engine, err = engine.New(engine.Deps{
		Carbon:   a.Carbon,
		Policy:   a.Policy,
		Compiler: a.Compiler,
		Profiler: a.Profiler,
		Executor: exec,
	},
		engine.WithDeferredStore(a.Deferred),
		engine.WithHistory(a.History),
		engine.WithObserver(a.Metrics),
		engine.WithLogger(a.Logger),
		engine.WithPollInterval(cfg.PollInterval()),
		engine.WithMaxRedefers(cfg.Engine.MaxRedefers),
		engine.WithForecastHours(cfg.Engine.ForecastHours),
	)
	return err
}

// openTarget opens the database queries run against. An empty SQLite path
// targets the state database itself.
func (a *App) openTarget() (*executor.SQLExecutor, error) {
	driver := a.Config.Database.Driver
	dsn := a.Config.Database.Path
	if dsn == "" && (driver == "" || driver == database.DriverSQLite) {
		p, err := database.DefaultPath()
		if err != nil {
			return nil, err
		}
		dsn = p
	}

	dialect, err := executor.DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := database.OpenTarget(driver, dsn)
	if err != nil {
		return nil, err
	}
	a.target = db
	a.closers = append(a.closers, db.Close)
	return executor.New(db, dialect), nil
}

// TargetDriver returns the dialect name of the query database.
func (a *App) TargetDriver() string {
	d, err := executor.DialectFor(a.Config.Database.Driver)
	if err != nil {
		return a.Config.Database.Driver
	}
	return d.Name()
}

// Close releases databases in reverse order of opening.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("app: close: %w", errors.Join(errs...))
	}
	return nil
}

// Load reads the persisted configuration and builds an App from it.
func Load(opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return New(cfg, opts)
}
