package pairing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sellwatcher/internal/schema"
	"sellwatcher/internal/storage"
)

// SkipReason classifies why a trade was excluded from scoring. Skips are
// expected outcomes, not batch failures; distinct reasons keep transient and
// permanent data gaps distinguishable in logs.
type SkipReason string

const (
	SkipMissingRef       SkipReason = "missing_open_snapshot_ref"
	SkipBadRef           SkipReason = "malformed_open_snapshot_ref"
	SkipNoOpenSnapshot   SkipReason = "open_snapshot_not_found"
	SkipNoLatestSnapshot SkipReason = "no_latest_snapshot"
	SkipSymbolMismatch   SkipReason = "open_snapshot_symbol_mismatch"
	SkipIncomplete       SkipReason = "required_indicator_missing"
)

// Skip records a definitive exclusion of one trade.
type Skip struct {
	Reason SkipReason
	Detail string
}

// PairedRow joins a trade's opening snapshot with the instrument's latest
// snapshot under disjoint feature namespaces. It exists only for the duration
// of one trade's processing and is never persisted.
type PairedRow struct {
	Symbol          string
	OpenSnapshotID  int64
	CloseSnapshotID int64
	Timestamp       time.Time
	LatestClose     decimal.Decimal
	// Features maps prefixed feature names to present values. Absent optional
	// indicators are simply not in the map.
	Features map[string]float64
}

// Pairer resolves snapshots and assembles paired rows.
type Pairer struct {
	snapshots storage.SnapshotStore
	logger    zerolog.Logger
}

// New constructs a Pairer.
func New(snapshots storage.SnapshotStore, logger zerolog.Logger) *Pairer {
	return &Pairer{
		snapshots: snapshots,
		logger:    logger.With().Str("component", "pairing").Logger(),
	}
}

// Pair produces either a paired feature row or a definitive skip for one
// trade. A non-nil error means storage misbehaved, not that data was absent.
func (p *Pairer) Pair(ctx context.Context, trade storage.ActiveTrade) (*PairedRow, *Skip, error) {
	if trade.OpenSnapshotRef == nil || *trade.OpenSnapshotRef == "" {
		return nil, &Skip{Reason: SkipMissingRef}, nil
	}

	openID, err := strconv.ParseInt(*trade.OpenSnapshotRef, 10, 64)
	if err != nil {
		return nil, &Skip{Reason: SkipBadRef, Detail: *trade.OpenSnapshotRef}, nil
	}

	open, err := p.snapshots.GetSnapshot(ctx, openID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &Skip{Reason: SkipNoOpenSnapshot, Detail: *trade.OpenSnapshotRef}, nil
		}
		return nil, nil, fmt.Errorf("fetch open snapshot: %w", err)
	}

	if open.Symbol != trade.Symbol {
		detail := fmt.Sprintf("snapshot %d belongs to %s", open.ID, open.Symbol)
		return nil, &Skip{Reason: SkipSymbolMismatch, Detail: detail}, nil
	}

	latest, err := p.snapshots.LatestSnapshot(ctx, trade.Symbol)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &Skip{Reason: SkipNoLatestSnapshot}, nil
		}
		return nil, nil, fmt.Errorf("fetch latest snapshot: %w", err)
	}

	features := make(map[string]float64, schema.NumModelFeatures())
	for _, field := range schema.Fields {
		if value, ok := open.Indicator(field.Name); ok {
			features[schema.OpenPrefix+field.Name] = value
		} else if field.Required {
			detail := fmt.Sprintf("%s absent from open snapshot %d", field.Name, open.ID)
			return nil, &Skip{Reason: SkipIncomplete, Detail: detail}, nil
		}
		if value, ok := latest.Indicator(field.Name); ok {
			features[schema.CurrentPrefix+field.Name] = value
		} else if field.Required {
			detail := fmt.Sprintf("%s absent from latest snapshot %d", field.Name, latest.ID)
			return nil, &Skip{Reason: SkipIncomplete, Detail: detail}, nil
		}
	}

	// close is a required field, so the lookup cannot miss here.
	latestClose, _ := latest.Indicator("close")

	row := &PairedRow{
		Symbol:          trade.Symbol,
		OpenSnapshotID:  open.ID,
		CloseSnapshotID: latest.ID,
		Timestamp:       latest.Timestamp,
		LatestClose:     decimal.NewFromFloat(latestClose),
		Features:        features,
	}

	p.logger.Debug().
		Str("symbol", row.Symbol).
		Int64("open_snapshot_id", row.OpenSnapshotID).
		Int64("close_snapshot_id", row.CloseSnapshotID).
		Msg("paired feature row assembled")

	return row, nil, nil
}
