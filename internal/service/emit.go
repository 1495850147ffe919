package service

import (
	"context"
	"fmt"
	"time"

	"purchase-anomaly-alerts/internal/alerting"
	"purchase-anomaly-alerts/internal/metrics"
	"purchase-anomaly-alerts/internal/network"
	"purchase-anomaly-alerts/internal/storage"
)

// emit writes the anomaly to the output log, then best-effort to the store
// and notifier. Only output failures are returned.
func (s *Service) emit(ctx context.Context, a network.Anomaly) error {
	if s.out != nil {
		if err := s.out.Write(a); err != nil {
			return fmt.Errorf("write flagged purchase: %w", err)
		}
	}
	metrics.PurchasesFlagged.Inc()

	s.logger.Info().
		Int64("user_id", a.Purchase.UserID).
		Time("purchased_at", a.Purchase.Timestamp).
		Str("amount", a.Purchase.DisplayAmount()).
		Str("mean", a.Mean()).
		Str("sd", a.StdDev()).
		Msg("anomalous purchase flagged")

	if s.store != nil {
		rec := storage.FlaggedPurchase{
			UserID:      a.Purchase.UserID,
			PurchasedAt: a.Purchase.Timestamp,
			Amount:      a.Purchase.Amount,
			Mean:        a.Stats.Mean.RoundBank(2),
			StdDev:      a.Stats.StdDev.RoundBank(2),
			Baseline:    a.Stats.Count,
			Degree:      s.network.Degree(),
			HistorySize: s.network.HistorySize(),
			CreatedAt:   time.Now().UTC(),
		}
		if _, err := s.store.InsertFlagged(ctx, rec); err != nil {
			s.logger.Error().Err(err).Int64("user_id", rec.UserID).Msg("failed to persist flagged purchase")
		}
	}

	if s.notifier != nil {
		note := alerting.Notification{
			UserID:      a.Purchase.UserID,
			PurchasedAt: a.Purchase.Timestamp,
			Amount:      a.Purchase.Amount,
			Mean:        a.Stats.Mean,
			StdDev:      a.Stats.StdDev,
			Cutoff:      a.Stats.Cutoff(),
			Baseline:    a.Stats.Count,
			Degree:      s.network.Degree(),
			Channels:    s.opts.Channels,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Int64("user_id", note.UserID).Msg("failed to dispatch alert")
		}
	}
	return nil
}
