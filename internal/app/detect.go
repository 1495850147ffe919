package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"purchase-anomaly-alerts/internal/eventlog"
	"purchase-anomaly-alerts/internal/service"
	"purchase-anomaly-alerts/internal/storage"
)

// Detect loads the batch log, replays the stream log and writes every
// flagged purchase to the output log.
func (a *App) Detect(ctx context.Context, opts DetectOptions) error {
	opts = a.resolvePaths(opts)
	started := time.Now()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}
	var flaggedStore storage.FlaggedStore
	if store != nil {
		flaggedStore = store
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

	stream, err := os.Open(opts.StreamPath)
	if err != nil {
		return fmt.Errorf("open stream log: %w", err)
	}
	defer stream.Close()

	summary, streamErr := svc.Stream(ctx, eventlog.NewScanner(stream))
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if streamErr != nil {
		return fmt.Errorf("stream log: %w", streamErr)
	}

	a.Logger.Info().
		Int("applied", summary.Applied).
		Int("rejected", summary.Rejected).
		Int("flagged", summary.Flagged).
		Dur("elapsed", summary.Duration).
		Msg("finished processing stream events")
	a.Logger.Info().
		Str("output", opts.OutputPath).
		Dur("total", time.Since(started)).
		Msg("detection complete")
	return nil
}

func (a *App) loadBatch(ctx context.Context, path string, writer service.AnomalyWriter, store storage.FlaggedStore) (*service.Service, error) {
	batch, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch log: %w", err)
	}
	defer batch.Close()

	svc, summary, err := service.LoadBatch(ctx, eventlog.NewScanner(batch), writer, store, a.newNotifier(), a.serviceOptions(), a.Logger)
	if err != nil {
		return nil, fmt.Errorf("batch log: %w", err)
	}

	a.Logger.Info().
		Int("applied", summary.Applied).
		Int("rejected", summary.Rejected).
		Int("users", svc.Network().UserCount()).
		Dur("elapsed", summary.Duration).
		Msg("finished loading initial events")
	return svc, nil
}

func createOutput(path string) (*os.File, error) {
	if err := ensureDir(path); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output log: %w", err)
	}
	return f, nil
}
