package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sellwatcher/internal/alerting"
	"sellwatcher/internal/config"
	"sellwatcher/internal/pairing"
	"sellwatcher/internal/scoring"
	"sellwatcher/internal/storage"
)

// Pairer assembles a paired feature row or a definitive skip for one trade.
type Pairer interface {
	Pair(ctx context.Context, trade storage.ActiveTrade) (*pairing.PairedRow, *pairing.Skip, error)
}

// Scorer returns one confidence per paired row.
type Scorer interface {
	Score(rows []*pairing.PairedRow) ([]scoring.ScoredRow, error)
}

// Persister writes a scored row if it qualifies.
type Persister interface {
	Persist(ctx context.Context, scored scoring.ScoredRow) (bool, error)
}

// Service drives the per-trade sell evaluation loop: discovery, pairing,
// scoring, filtering, persistence. One trade's failure never aborts the batch.
type Service struct {
	trades   storage.TradeStore
	pairer   Pairer
	scorer   Scorer
	writer   Persister
	notifier alerting.Notifier
	logger   zerolog.Logger

	threshold decimal.Decimal
	channels  []string
	alertsOn  bool
}

// New constructs the orchestration service.
func New(cfg *config.Config, trades storage.TradeStore, pairer Pairer, scorer Scorer, writer Persister, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		trades:    trades,
		pairer:    pairer,
		scorer:    scorer,
		writer:    writer,
		notifier:  notifier,
		logger:    logger.With().Str("component", "service").Logger(),
		threshold: decimal.NewFromFloat(cfg.Model.Threshold),
		channels:  cfg.Alerting.Channels,
		alertsOn:  cfg.Alerting.Enabled,
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeFailed
	outcomeFiltered
	outcomePersisted
)

// Scan runs one full batch: all active trades are fetched once, then each is
// evaluated in sequence. An empty registry ends the scan successfully. Only
// the initial trade fetch can abort; every per-trade failure is logged with
// its symbol and the loop advances.
func (s *Service) Scan(ctx context.Context) error {
	trades, err := s.trades.ListActiveTrades(ctx)
	if err != nil {
		return fmt.Errorf("list active trades: %w", err)
	}

	if len(trades) == 0 {
		s.logger.Info().Msg("no active trades found")
		return nil
	}

	var skipped, failed, filtered, persisted int
	for _, trade := range trades {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch s.processTrade(ctx, trade) {
		case outcomeSkipped:
			skipped++
		case outcomeFailed:
			failed++
		case outcomeFiltered:
			filtered++
		case outcomePersisted:
			persisted++
		}
	}

	s.logger.Info().
		Int("trades", len(trades)).
		Int("persisted", persisted).
		Int("filtered", filtered).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("sell scan completed")
	return nil
}

// ProcessTick adapts Scan to the scheduler's tick contract.
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	s.logger.Debug().Time("tick", tick).Msg("starting scheduled sell scan")
	return s.Scan(ctx)
}

func (s *Service) processTrade(ctx context.Context, trade storage.ActiveTrade) outcome {
	row, skip, err := s.pairer.Pair(ctx, trade)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", trade.Symbol).Msg("pairing failed")
		return outcomeFailed
	}
	if skip != nil {
		s.logger.Warn().
			Str("symbol", trade.Symbol).
			Str("reason", string(skip.Reason)).
			Str("detail", skip.Detail).
			Msg("trade excluded from scoring")
		return outcomeSkipped
	}

	scored, err := s.scorer.Score([]*pairing.PairedRow{row})
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", trade.Symbol).Msg("scoring failed")
		return outcomeFailed
	}
	if len(scored) != 1 {
		s.logger.Error().Str("symbol", trade.Symbol).Int("rows", len(scored)).Msg("unexpected scoring result count")
		return outcomeFailed
	}

	wrote, err := s.writer.Persist(ctx, scored[0])
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", trade.Symbol).Msg("persistence failed")
		return outcomeFailed
	}
	if !wrote {
		return outcomeFiltered
	}

	s.maybeNotify(ctx, scored[0])
	return outcomePersisted
}

func (s *Service) maybeNotify(ctx context.Context, scored scoring.ScoredRow) {
	if !s.alertsOn || s.notifier == nil {
		return
	}

	note := alerting.Notification{
		Symbol:          scored.Row.Symbol,
		Score:           decimal.NewFromFloat(scored.Score),
		Threshold:       s.threshold,
		Price:           scored.Row.LatestClose,
		OpenSnapshotID:  scored.Row.OpenSnapshotID,
		CloseSnapshotID: scored.Row.CloseSnapshotID,
		CreatedAt:       time.Now().UTC(),
		Channels:        s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("symbol", note.Symbol).Msg("failed to dispatch signal notification")
	}
}
