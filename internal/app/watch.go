package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"purchase-anomaly-alerts/internal/eventlog"
	"purchase-anomaly-alerts/internal/metrics"
	"purchase-anomaly-alerts/internal/scheduler"
	"purchase-anomaly-alerts/internal/storage"
)

// Watch loads the batch log and then follows the stream log, processing lines
// as they are appended until interrupted.
func (a *App) Watch(ctx context.Context, opts DetectOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	opts = a.resolvePaths(opts)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; flagged purchases only go to the output log")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var flaggedStore storage.FlaggedStore
	if store != nil {
		flaggedStore = store
		unlock, acquired, err := store.TryAdvisoryLock(ctx, a.Config.Watch.AdvisoryLockKey)
		if err != nil {
			return err
		}
		if !acquired {
			return errors.New("another watcher holds the advisory lock")
		}
		defer unlock()
	}

	if addr := a.Config.Metrics.ListenAddr; addr != "" {
		stop := a.serveMetrics(addr)
		defer stop()
	}

	out, err := createOutput(opts.OutputPath)
	if err != nil {
		return err
	}
	defer out.Close()
	writer := eventlog.NewWriter(out)

	svc, err := a.loadBatch(ctx, opts.BatchPath, writer, flaggedStore)
	if err != nil {
		return err
	}

	tail := eventlog.NewTailer(opts.StreamPath, 0)
	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Watch.Interval,
		AlignToStart: a.Config.Watch.AlignToBucket,
		StartupDelay: a.Config.Watch.StartupDelay,
		Immediate:    true,
	}, a.Logger)

	var fatal error
	a.Logger.Info().Str("stream", opts.StreamPath).Dur("interval", a.Config.Watch.Interval).Msg("watching stream log")
	runErr := sched.Run(ctx, func(ctx context.Context, tick time.Time) error {
		resets := tail.Resets()
		lines, err := tail.ReadLines()
		if err != nil {
			return err
		}
		if tail.Resets() != resets {
			a.Logger.Warn().Msg("stream log shrank; reading from the beginning")
		}
		if len(lines) == 0 {
			return nil
		}

		summary, procErr := svc.ProcessLines(ctx, lines)
		if err := writer.Flush(); err != nil {
			fatal = fmt.Errorf("flush output: %w", err)
			return scheduler.ErrStop
		}
		if procErr != nil {
			fatal = fmt.Errorf("stream log: %w", procErr)
			return scheduler.ErrStop
		}
		a.Logger.Info().
			Time("tick", tick).
			Int("applied", summary.Applied).
			Int("rejected", summary.Rejected).
			Int("flagged", summary.Flagged).
			Int64("offset", tail.Offset()).
			Msg("stream chunk processed")
		return nil
	})

	if fatal != nil {
		return fatal
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	a.Logger.Info().Msg("watch stopped")
	return nil
}

func (a *App) serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	a.Logger.Info().Str("addr", addr).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
