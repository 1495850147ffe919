package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"purchase-anomaly-alerts/internal/eventlog"
)

// Backfill loads an existing flagged purchases log into the database.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	path := opts.InputPath
	if path == "" {
		path = a.Config.Output.Path
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open flagged log: %w", err)
	}
	defer f.Close()

	lines, err := eventlog.ReadFlagged(f)
	if err != nil {
		return err
	}
	records, err := flaggedFromLog(lines, time.Time{}, endOfTime)
	if err != nil {
		return err
	}

	if opts.DryRun {
		a.Logger.Warn().Int("records", len(records)).Msg("backfill dry-run: nothing written")
		return nil
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot backfill")
	}
	defer closeStore()

	inserted, failed := 0, 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec.CreatedAt = time.Now().UTC()
		if _, err := store.InsertFlagged(ctx, rec); err != nil {
			failed++
			a.Logger.Error().Err(err).Int64("user_id", rec.UserID).Time("purchased_at", rec.PurchasedAt).Msg("backfill insert failed")
			continue
		}
		inserted++
	}

	a.Logger.Info().Int("inserted", inserted).Int("failed", failed).Str("path", path).Msg("backfill complete")
	if failed > 0 {
		return errors.New("some flagged purchases failed to backfill; check the logs")
	}
	return nil
}
