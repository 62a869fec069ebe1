package signal

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sellwatcher/internal/pairing"
	"sellwatcher/internal/scoring"
	"sellwatcher/internal/storage"
)

type fakeSignalStore struct {
	byKey   map[string]storage.SuggestedSignal
	upserts int
	err     error
}

func newFakeSignalStore() *fakeSignalStore {
	return &fakeSignalStore{byKey: make(map[string]storage.SuggestedSignal)}
}

func (f *fakeSignalStore) UpsertSignal(_ context.Context, sig storage.SuggestedSignal) error {
	if f.err != nil {
		return f.err
	}
	f.upserts++
	f.byKey[sig.Symbol+"|"+sig.SignalType] = sig
	return nil
}

func (f *fakeSignalStore) ListSignals(_ context.Context, _ int) ([]storage.SuggestedSignal, error) {
	out := make([]storage.SuggestedSignal, 0, len(f.byKey))
	for _, sig := range f.byKey {
		out = append(out, sig)
	}
	return out, nil
}

func scoredRow(symbol string, score float64) scoring.ScoredRow {
	return scoring.ScoredRow{
		Row: &pairing.PairedRow{
			Symbol:          symbol,
			OpenSnapshotID:  1,
			CloseSnapshotID: 2,
		},
		Score: score,
	}
}

func TestPersistThresholdInclusive(t *testing.T) {
	store := newFakeSignalStore()
	w := NewWriter(store, 0.7, zerolog.Nop())

	persisted, err := w.Persist(context.Background(), scoredRow("BTCUSD", 0.7))
	if err != nil {
		t.Fatalf("persist failed: %v", err)
	}
	if !persisted {
		t.Fatal("score exactly at threshold must qualify")
	}
	if store.upserts != 1 {
		t.Fatalf("expected exactly one upsert, got %d", store.upserts)
	}

	sig := store.byKey["BTCUSD|"+TypeSell]
	if sig.SignalType != TypeSell || sig.OpenSnapshotID != 1 || sig.CloseSnapshotID != 2 {
		t.Fatalf("unexpected persisted signal: %+v", sig)
	}
	if sig.CreatedAt.IsZero() {
		t.Fatal("created_at must be set at write time")
	}
}

func TestPersistDropsBelowThreshold(t *testing.T) {
	store := newFakeSignalStore()
	w := NewWriter(store, 0.7, zerolog.Nop())

	persisted, err := w.Persist(context.Background(), scoredRow("BTCUSD", 0.6999999))
	if err != nil {
		t.Fatalf("below-threshold drop is not an error: %v", err)
	}
	if persisted || store.upserts != 0 {
		t.Fatalf("score below threshold must not be written, upserts=%d", store.upserts)
	}
}

func TestPersistDropsNaNScore(t *testing.T) {
	store := newFakeSignalStore()
	w := NewWriter(store, 0.7, zerolog.Nop())

	persisted, err := w.Persist(context.Background(), scoredRow("BTCUSD", math.NaN()))
	if err != nil {
		t.Fatalf("missing score drop is not an error: %v", err)
	}
	if persisted || store.upserts != 0 {
		t.Fatal("row without a confidence score must not be written")
	}
}

func TestPersistOverwritesSameKey(t *testing.T) {
	store := newFakeSignalStore()
	w := NewWriter(store, 0.7, zerolog.Nop())
	w.now = func() time.Time { return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC) }

	if _, err := w.Persist(context.Background(), scoredRow("BTCUSD", 0.82)); err != nil {
		t.Fatalf("first persist failed: %v", err)
	}
	first := store.byKey["BTCUSD|"+TypeSell]

	w.now = func() time.Time { return time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC) }
	rescored := scoredRow("BTCUSD", 0.91)
	rescored.Row.CloseSnapshotID = 3
	if _, err := w.Persist(context.Background(), rescored); err != nil {
		t.Fatalf("second persist failed: %v", err)
	}

	if len(store.byKey) != 1 {
		t.Fatalf("re-run must overwrite, not duplicate: %d keys", len(store.byKey))
	}
	second := store.byKey["BTCUSD|"+TypeSell]
	if !second.Score.GreaterThan(first.Score) || second.CloseSnapshotID != 3 {
		t.Fatalf("overwrite did not refresh score/refs: %+v", second)
	}
	if !second.CreatedAt.After(first.CreatedAt) {
		t.Fatal("created_at must be refreshed on overwrite")
	}
}

func TestDisqualifyingRescoreLeavesSignalInPlace(t *testing.T) {
	store := newFakeSignalStore()
	w := NewWriter(store, 0.7, zerolog.Nop())

	if _, err := w.Persist(context.Background(), scoredRow("BTCUSD", 0.82)); err != nil {
		t.Fatalf("qualifying persist failed: %v", err)
	}
	before := store.byKey["BTCUSD|"+TypeSell]

	persisted, err := w.Persist(context.Background(), scoredRow("BTCUSD", 0.5))
	if err != nil || persisted {
		t.Fatalf("disqualifying re-score must be a silent drop: persisted=%v err=%v", persisted, err)
	}

	after := store.byKey["BTCUSD|"+TypeSell]
	if !after.Score.Equal(before.Score) || !after.CreatedAt.Equal(before.CreatedAt) {
		t.Fatalf("prior qualifying signal must remain untouched: %+v", after)
	}
}

func TestPersistWrapsStoreError(t *testing.T) {
	store := newFakeSignalStore()
	store.err = errors.New("write refused")
	w := NewWriter(store, 0.7, zerolog.Nop())

	if _, err := w.Persist(context.Background(), scoredRow("BTCUSD", 0.9)); !errors.Is(err, store.err) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
