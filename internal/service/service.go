package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"purchase-anomaly-alerts/internal/alerting"
	"purchase-anomaly-alerts/internal/eventlog"
	"purchase-anomaly-alerts/internal/metrics"
	"purchase-anomaly-alerts/internal/network"
	"purchase-anomaly-alerts/internal/storage"
)

// AnomalyWriter receives every flagged purchase, in stream order.
type AnomalyWriter interface {
	Write(a network.Anomaly) error
}

// Options configure the replay pipeline.
type Options struct {
	// SkipBadEvents logs and skips rejected lines instead of aborting.
	SkipBadEvents bool
	Channels      []string
}

// Summary reports what one replay pass did.
type Summary struct {
	Applied  int
	Rejected int
	Flagged  int
	Duration time.Duration
}

// Service replays batch and stream events through the network and fans
// flagged purchases out to the output log, the store and the notifier.
type Service struct {
	network  *network.Network
	out      AnomalyWriter
	store    storage.FlaggedStore
	notifier alerting.Notifier
	opts     Options
	logger   zerolog.Logger
	// records counts lines consumed through ProcessLines.
	records int
}

// New constructs the pipeline. store and notifier may be nil.
func New(net *network.Network, out AnomalyWriter, store storage.FlaggedStore, notifier alerting.Notifier, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		network:  net,
		out:      out,
		store:    store,
		notifier: notifier,
		opts:     opts,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// Network exposes the replayed state.
func (s *Service) Network() *network.Network { return s.network }

// LoadBatch reads the parameter line from sc and builds a network from the
// remaining batch events. It returns the service ready for streaming.
func LoadBatch(ctx context.Context, sc *eventlog.Scanner, out AnomalyWriter, store storage.FlaggedStore, notifier alerting.Notifier, opts Options, logger zerolog.Logger) (*Service, Summary, error) {
	params, err := sc.ReadParams()
	if err != nil {
		return nil, Summary{}, fmt.Errorf("read parameters: %w", err)
	}
	net, err := network.New(params.Degree, params.HistorySize)
	if err != nil {
		return nil, Summary{}, err
	}

	svc := New(net, out, store, notifier, opts, logger)
	svc.logger.Info().Int("degree", params.Degree).Int("history_size", params.HistorySize).Msg("network parameters loaded")

	summary, err := svc.replay(ctx, sc, metrics.PhaseBatch, func(ctx context.Context, ev network.Event) (bool, error) {
		return false, net.ApplyInitial(ev)
	})
	return svc, summary, err
}

// Stream replays stream events from sc, emitting anomalies.
func (s *Service) Stream(ctx context.Context, sc *eventlog.Scanner) (Summary, error) {
	return s.replay(ctx, sc, metrics.PhaseStream, s.processStream)
}

// ProcessLines applies already-read stream lines, as produced by a Tailer.
// Errors carry the 1-based record number counted across all calls.
func (s *Service) ProcessLines(ctx context.Context, lines [][]byte) (Summary, error) {
	started := time.Now()
	var summary Summary
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		s.records++
		var flagged bool
		ev, err := eventlog.ParseEvent(line)
		if err == nil {
			flagged, err = s.processStream(ctx, ev)
		}
		if err != nil {
			err = fmt.Errorf("stream record %d: %w", s.records, err)
		}
		if err := s.account(&summary, metrics.PhaseStream, ev, flagged, err); err != nil {
			return summary, err
		}
	}
	summary.Duration = time.Since(started)
	metrics.ReplayDuration.WithLabelValues(metrics.PhaseStream).Observe(summary.Duration.Seconds())
	metrics.NetworkUsers.Set(float64(s.network.UserCount()))
	return summary, nil
}

// ProcessStreamEvent applies one stream event and emits its anomaly, if any.
func (s *Service) ProcessStreamEvent(ctx context.Context, ev network.Event) error {
	_, err := s.processStream(ctx, ev)
	return err
}

func (s *Service) processStream(ctx context.Context, ev network.Event) (bool, error) {
	anomaly, err := s.network.ApplyStreaming(ev)
	if err != nil || anomaly == nil {
		return false, err
	}
	return true, s.emit(ctx, *anomaly)
}

type applyFunc func(ctx context.Context, ev network.Event) (flagged bool, err error)

func (s *Service) replay(ctx context.Context, sc *eventlog.Scanner, phase string, apply applyFunc) (Summary, error) {
	started := time.Now()
	var summary Summary
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		ev, err := sc.Next()
		if err == io.EOF {
			break
		}
		var flagged bool
		if err == nil {
			flagged, err = apply(ctx, ev)
			if err != nil {
				err = fmt.Errorf("line %d: %w", sc.Line(), err)
			}
		}
		if err := s.account(&summary, phase, ev, flagged, err); err != nil {
			return summary, err
		}
	}
	summary.Duration = time.Since(started)
	metrics.ReplayDuration.WithLabelValues(phase).Observe(summary.Duration.Seconds())
	metrics.NetworkUsers.Set(float64(s.network.UserCount()))
	return summary, nil
}

// account folds one event outcome into summary and applies the error policy.
// A non-nil return aborts the replay.
func (s *Service) account(summary *Summary, phase string, ev network.Event, flagged bool, err error) error {
	if err == nil {
		summary.Applied++
		if flagged {
			summary.Flagged++
		}
		metrics.EventsApplied.WithLabelValues(phase, network.Kind(ev)).Inc()
		return nil
	}

	reason, skippable := classify(err)
	if !skippable || !s.opts.SkipBadEvents {
		return err
	}
	summary.Rejected++
	metrics.EventsRejected.WithLabelValues(phase, reason).Inc()
	s.logger.Warn().Err(err).Str("phase", phase).Str("reason", reason).Msg("skipping rejected event")
	return nil
}

func classify(err error) (string, bool) {
	switch {
	case errors.Is(err, eventlog.ErrMalformedRecord):
		return "malformed", true
	case errors.Is(err, network.ErrUnknownEventKind):
		return "unknown_kind", true
	case errors.Is(err, network.ErrUnknownUser):
		return "unknown_user", true
	case errors.Is(err, network.ErrNotFriends):
		return "not_friends", true
	default:
		return "", false
	}
}
