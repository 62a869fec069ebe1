package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is one timestamped row of market and indicator values for one
// instrument. Rows are written by the ingestion pipeline and immutable here.
type Snapshot struct {
	ID        int64
	Symbol    string
	Timestamp time.Time
	// Indicators holds the non-NULL indicator columns keyed by schema name.
	Indicators map[string]float64
}

// Indicator returns the named indicator value and whether it was present.
func (s *Snapshot) Indicator(name string) (float64, bool) {
	v, ok := s.Indicators[name]
	return v, ok
}

// ActiveTrade is a currently open position as recorded by the execution
// process. OpenSnapshotRef points at the snapshot active when the position was
// opened; it may be absent or malformed and is validated by the pairing step.
type ActiveTrade struct {
	Symbol          string
	OpenSnapshotRef *string
}

// SuggestedSignal is one persisted sell recommendation. At most one row exists
// per (Symbol, SignalType); re-runs overwrite score, refs, and CreatedAt.
type SuggestedSignal struct {
	Symbol          string
	SignalType      string
	Score           decimal.Decimal
	OpenSnapshotID  int64
	CloseSnapshotID int64
	CreatedAt       time.Time
}
