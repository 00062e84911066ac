package serve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"nathanbeddoewebdev/carbonq/internal/app"
	"nathanbeddoewebdev/carbonq/internal/history"
	"nathanbeddoewebdev/carbonq/internal/httpapi"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spf13/cobra"
)

const (
	defaultAddr     = ":8080"
	shutdownTimeout = 10 * time.Second
)

// NewCommand returns the "serve" command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run deferred queries",
		Long: `Start the HTTP API, the Prometheus /metrics endpoint and the deferred
query scheduler. Deferred queries submitted by any carbonq process are
picked up from the local store.

When metrics.auto_save is enabled, new execution history is exported to
metrics.output_dir every metrics.save_interval_minutes.

Examples:
  carbonq serve
  carbonq serve --addr 127.0.0.1:9000`,
		Args:         cobra.NoArgs,
		RunE:         runServe,
		SilenceUsage: true,
	}

	cmd.Flags().String("addr", defaultAddr, "Address to listen on")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	a, err := app.Load(app.Options{Metrics: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "carbonq listening on %s (zone %s)\n", ln.Addr(), a.Carbon.Zone())
	return serve(cmd.Context(), a, ln, cmd.OutOrStdout())
}

// serve runs the API server, the scheduler and the history exporter until
// ctx is cancelled or one of them fails.
func serve(ctx context.Context, a *app.App, ln net.Listener, out io.Writer) error {
	if n, err := a.Engine.Resume(); err != nil {
		a.Logger.Warn("failed to resume deferred requests", zap.Error(err))
	} else if n > 0 {
		fmt.Fprintf(out, "Resumed %d deferred quer(y/ies).\n", n)
	}

	var exportDir string
	if a.Config.Metrics.AutoSave {
		dir, err := a.Config.ExportDir()
		if err != nil {
			return err
		}
		exportDir = dir
	}

	api := httpapi.New(a.Engine, a.Carbon,
		httpapi.WithMetrics(a.Metrics),
		httpapi.WithHistory(a.History),
		httpapi.WithLogger(a.Logger),
	)
	srv := &http.Server{
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.Engine.Run(ctx)
	})

	if exportDir != "" {
		interval := time.Duration(a.Config.Metrics.SaveIntervalMinutes) * time.Minute
		g.Go(func() error {
			autoSave(ctx, a.History, exportDir, interval, a.Logger)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

type historySource interface {
	ListSince(since time.Time) ([]history.Record, error)
}

// autoSave exports history recorded since the previous export every
// interval, and once more when ctx is cancelled.
func autoSave(ctx context.Context, src historySource, dir string, interval time.Duration, logger *zap.Logger) {
	since := time.Now()
	save := func() {
		records, err := src.ListSince(since)
		if err != nil {
			logger.Warn("history export failed", zap.Error(err))
			return
		}
		if len(records) == 0 {
			return
		}
		path, err := history.ExportToDir(dir, records, time.Now())
		if err != nil {
			logger.Warn("history export failed", zap.Error(err))
			return
		}
		since = records[len(records)-1].Timestamp.Add(time.Nanosecond)
		logger.Info("history exported", zap.String("path", path), zap.Int("records", len(records)))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			save()
			return
		case <-ticker.C:
			save()
		}
	}
}
