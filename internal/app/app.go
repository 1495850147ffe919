package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"purchase-anomaly-alerts/internal/alerting"
	"purchase-anomaly-alerts/internal/config"
	"purchase-anomaly-alerts/internal/service"
	"purchase-anomaly-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) serviceOptions() service.Options {
	return service.Options{
		SkipBadEvents: a.Config.SkipBadEvents(),
		Channels:      a.Config.Alerting.Channels,
	}
}

// DetectOptions locate the logs; empty fields fall back to configuration.
type DetectOptions struct {
	BatchPath  string
	StreamPath string
	OutputPath string
}

func (a *App) resolvePaths(opts DetectOptions) DetectOptions {
	if opts.BatchPath == "" {
		opts.BatchPath = a.Config.Input.BatchPath
	}
	if opts.StreamPath == "" {
		opts.StreamPath = a.Config.Input.StreamPath
	}
	if opts.OutputPath == "" {
		opts.OutputPath = a.Config.Output.Path
	}
	return opts
}

// ExportOptions hold parameters for exporting flagged purchases.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// BackfillOptions configure loading an existing output log into the store.
type BackfillOptions struct {
	InputPath string
	DryRun    bool
}

// SimulateOptions describe a synthetic flagged purchase.
type SimulateOptions struct {
	UserID int64
	Amount string
	Mean   string
	StdDev string
}
