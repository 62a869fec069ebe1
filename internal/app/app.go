package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"sellwatcher/internal/alerting"
	"sellwatcher/internal/config"
	"sellwatcher/internal/pairing"
	"sellwatcher/internal/scheduler"
	"sellwatcher/internal/scoring"
	"sellwatcher/internal/service"
	sellsignal "sellwatcher/internal/signal"
	"sellwatcher/internal/storage"
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

// openStore connects to storage and guarantees the unique
// (symbol, signal_type) index the upsert path relies on.
func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool, storage.Tables{
		Snapshots:    a.Config.Database.SnapshotsTable,
		ActiveTrades: a.Config.Database.ActiveTradesTable,
		Signals:      a.Config.Database.SignalsTable,
	})

	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) loadModel() (scoring.Model, error) {
	return scoring.LoadModel(a.Config.Model.Path)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newService(store *storage.Store, model scoring.Model) *service.Service {
	pairer := pairing.New(store, a.Logger)
	scorer := scoring.NewScorer(model, a.Logger)
	writer := sellsignal.NewWriter(store, a.Config.Model.Threshold, a.Logger)
	notifier := a.newNotifier()
	return service.New(a.Config, store, pairer, scorer, writer, notifier, a.Logger)
}

// Scan executes a single batch pass over the active trades.
func (a *App) Scan(ctx context.Context) error {
	model, err := a.loadModel()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return a.newService(store, model).Scan(ctx)
}

// Run executes the long-running periodic scan loop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	model, err := a.loadModel()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(store, model)

	a.Logger.Info().Msg("starting sell scan service")
	err = sched.Run(ctx, svc.ProcessTick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("sell scan service stopped")
	return nil
}

// ExportOptions hold parameters for exporting a symbol's snapshot history.
type ExportOptions struct {
	Symbol    string
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

// SimulateOptions configure the simulate command.
type SimulateOptions struct {
	OpenSnapshotID int64
}
