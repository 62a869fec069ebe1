package signal

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sellwatcher/internal/scoring"
	"sellwatcher/internal/storage"
)

// TypeSell is the only signal type this pipeline emits.
const TypeSell = "SELL"

// Writer filters scored rows by the confidence threshold and upserts
// qualifying signals keyed by (symbol, signal type).
type Writer struct {
	store     storage.SignalStore
	threshold decimal.Decimal
	logger    zerolog.Logger
	now       func() time.Time
}

// NewWriter constructs a Writer with the configured minimum confidence.
func NewWriter(store storage.SignalStore, threshold float64, logger zerolog.Logger) *Writer {
	return &Writer{
		store:     store,
		threshold: decimal.NewFromFloat(threshold),
		logger:    logger.With().Str("component", "signal_writer").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Persist writes one scored row if it qualifies. The threshold is inclusive
// on the pass side. A disqualified row never touches storage, so a previously
// persisted qualifying signal stands until a new qualifying score overwrites
// it. Returns whether a write happened.
func (w *Writer) Persist(ctx context.Context, scored scoring.ScoredRow) (bool, error) {
	row := scored.Row

	if math.IsNaN(scored.Score) {
		w.logger.Warn().Str("symbol", row.Symbol).Msg("no confidence score returned; skipping save")
		return false, nil
	}

	score := decimal.NewFromFloat(scored.Score)
	if score.LessThan(w.threshold) {
		w.logger.Info().
			Str("symbol", row.Symbol).
			Str("score", score.StringFixed(4)).
			Str("threshold", w.threshold.StringFixed(4)).
			Msg("score below threshold; skipping save")
		return false, nil
	}

	sig := storage.SuggestedSignal{
		Symbol:          row.Symbol,
		SignalType:      TypeSell,
		Score:           score,
		OpenSnapshotID:  row.OpenSnapshotID,
		CloseSnapshotID: row.CloseSnapshotID,
		// Always the write time, including on overwrite: created_at records
		// when the signal was last (re)computed, not when it was first seen.
		CreatedAt: w.now(),
	}

	if err := w.store.UpsertSignal(ctx, sig); err != nil {
		return false, fmt.Errorf("persist sell signal for %s: %w", row.Symbol, err)
	}

	w.logger.Info().
		Str("symbol", sig.Symbol).
		Str("score", sig.Score.StringFixed(4)).
		Int64("open_snapshot_id", sig.OpenSnapshotID).
		Int64("close_snapshot_id", sig.CloseSnapshotID).
		Msg("sell signal upserted")
	return true, nil
}
