package pairing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sellwatcher/internal/schema"
	"sellwatcher/internal/storage"
)

type fakeSnapshotStore struct {
	byID     map[int64]*storage.Snapshot
	latest   map[string]*storage.Snapshot
	queryErr error
}

func (f *fakeSnapshotStore) GetSnapshot(_ context.Context, id int64) (*storage.Snapshot, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	snap, ok := f.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return snap, nil
}

func (f *fakeSnapshotStore) LatestSnapshot(_ context.Context, symbol string) (*storage.Snapshot, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	snap, ok := f.latest[symbol]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return snap, nil
}

func fullIndicators(base float64) map[string]float64 {
	indicators := make(map[string]float64, len(schema.Fields))
	for i, f := range schema.Fields {
		indicators[f.Name] = base + float64(i)
	}
	return indicators
}

func strPtr(s string) *string { return &s }

func testSnapshot(id int64, symbol string, base float64) *storage.Snapshot {
	return &storage.Snapshot{
		ID:         id,
		Symbol:     symbol,
		Timestamp:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Indicators: fullIndicators(base),
	}
}

func TestPairSkipsMissingRef(t *testing.T) {
	p := New(&fakeSnapshotStore{}, zerolog.Nop())

	for _, trade := range []storage.ActiveTrade{
		{Symbol: "BTCUSD"},
		{Symbol: "BTCUSD", OpenSnapshotRef: strPtr("")},
	} {
		row, skip, err := p.Pair(context.Background(), trade)
		if err != nil || row != nil {
			t.Fatalf("expected skip only, got row=%v err=%v", row, err)
		}
		if skip == nil || skip.Reason != SkipMissingRef {
			t.Fatalf("expected %s, got %#v", SkipMissingRef, skip)
		}
	}
}

func TestPairSkipsMalformedRef(t *testing.T) {
	p := New(&fakeSnapshotStore{}, zerolog.Nop())

	_, skip, err := p.Pair(context.Background(), storage.ActiveTrade{
		Symbol:          "BTCUSD",
		OpenSnapshotRef: strPtr("not-a-number"),
	})
	if err != nil {
		t.Fatalf("malformed ref should not error: %v", err)
	}
	if skip == nil || skip.Reason != SkipBadRef {
		t.Fatalf("expected %s, got %#v", SkipBadRef, skip)
	}
}

func TestPairSkipsUnresolvedOpenSnapshot(t *testing.T) {
	p := New(&fakeSnapshotStore{byID: map[int64]*storage.Snapshot{}}, zerolog.Nop())

	_, skip, err := p.Pair(context.Background(), storage.ActiveTrade{
		Symbol:          "BTCUSD",
		OpenSnapshotRef: strPtr("42"),
	})
	if err != nil {
		t.Fatalf("unresolved ref should not error: %v", err)
	}
	if skip == nil || skip.Reason != SkipNoOpenSnapshot {
		t.Fatalf("expected %s, got %#v", SkipNoOpenSnapshot, skip)
	}
}

func TestPairSkipsWhenNoLatestSnapshot(t *testing.T) {
	store := &fakeSnapshotStore{
		byID:   map[int64]*storage.Snapshot{1: testSnapshot(1, "BTCUSD", 10)},
		latest: map[string]*storage.Snapshot{},
	}
	p := New(store, zerolog.Nop())

	_, skip, err := p.Pair(context.Background(), storage.ActiveTrade{
		Symbol:          "BTCUSD",
		OpenSnapshotRef: strPtr("1"),
	})
	if err != nil {
		t.Fatalf("missing latest should not error: %v", err)
	}
	if skip == nil || skip.Reason != SkipNoLatestSnapshot {
		t.Fatalf("expected %s, got %#v", SkipNoLatestSnapshot, skip)
	}
}

func TestPairSkipsSymbolMismatch(t *testing.T) {
	store := &fakeSnapshotStore{
		byID:   map[int64]*storage.Snapshot{1: testSnapshot(1, "ETHUSD", 10)},
		latest: map[string]*storage.Snapshot{"BTCUSD": testSnapshot(2, "BTCUSD", 20)},
	}
	p := New(store, zerolog.Nop())

	_, skip, err := p.Pair(context.Background(), storage.ActiveTrade{
		Symbol:          "BTCUSD",
		OpenSnapshotRef: strPtr("1"),
	})
	if err != nil {
		t.Fatalf("symbol mismatch should not error: %v", err)
	}
	if skip == nil || skip.Reason != SkipSymbolMismatch {
		t.Fatalf("expected %s, got %#v", SkipSymbolMismatch, skip)
	}
}

func TestPairSkipsMissingRequiredIndicator(t *testing.T) {
	open := testSnapshot(1, "BTCUSD", 10)
	delete(open.Indicators, "close")
	store := &fakeSnapshotStore{
		byID:   map[int64]*storage.Snapshot{1: open},
		latest: map[string]*storage.Snapshot{"BTCUSD": testSnapshot(2, "BTCUSD", 20)},
	}
	p := New(store, zerolog.Nop())

	_, skip, err := p.Pair(context.Background(), storage.ActiveTrade{
		Symbol:          "BTCUSD",
		OpenSnapshotRef: strPtr("1"),
	})
	if err != nil {
		t.Fatalf("missing required indicator should not error: %v", err)
	}
	if skip == nil || skip.Reason != SkipIncomplete {
		t.Fatalf("expected %s, got %#v", SkipIncomplete, skip)
	}
}

func TestPairPropagatesStorageError(t *testing.T) {
	boom := errors.New("connection reset")
	p := New(&fakeSnapshotStore{queryErr: boom}, zerolog.Nop())

	_, skip, err := p.Pair(context.Background(), storage.ActiveTrade{
		Symbol:          "BTCUSD",
		OpenSnapshotRef: strPtr("1"),
	})
	if skip != nil {
		t.Fatalf("storage failure is not a skip: %#v", skip)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
}

func TestPairAssemblesDisjointNamespaces(t *testing.T) {
	open := testSnapshot(1, "BTCUSD", 10)
	latest := testSnapshot(2, "BTCUSD", 200)
	// An optional indicator absent from the latest side must simply be
	// omitted from the row.
	delete(latest.Indicators, "rsi")

	store := &fakeSnapshotStore{
		byID:   map[int64]*storage.Snapshot{1: open},
		latest: map[string]*storage.Snapshot{"BTCUSD": latest},
	}
	p := New(store, zerolog.Nop())

	row, skip, err := p.Pair(context.Background(), storage.ActiveTrade{
		Symbol:          "BTCUSD",
		OpenSnapshotRef: strPtr("1"),
	})
	if err != nil || skip != nil {
		t.Fatalf("expected paired row, got skip=%#v err=%v", skip, err)
	}

	if row.OpenSnapshotID != 1 || row.CloseSnapshotID != 2 {
		t.Fatalf("unexpected snapshot refs: %+v", row)
	}
	if row.Symbol != "BTCUSD" {
		t.Fatalf("unexpected symbol %s", row.Symbol)
	}

	for _, f := range schema.Fields {
		openVal, ok := row.Features[schema.OpenPrefix+f.Name]
		if !ok {
			t.Fatalf("open feature %s missing", f.Name)
		}
		if openVal != open.Indicators[f.Name] {
			t.Fatalf("open feature %s: expected %f, got %f", f.Name, open.Indicators[f.Name], openVal)
		}
	}

	if _, ok := row.Features[schema.CurrentPrefix+"rsi"]; ok {
		t.Fatal("absent optional indicator must not appear in features")
	}

	currentClose := row.Features[schema.CurrentPrefix+"close"]
	if currentClose != latest.Indicators["close"] {
		t.Fatalf("current close: expected %f, got %f", latest.Indicators["close"], currentClose)
	}
	if !row.LatestClose.Equal(decimal.NewFromFloat(latest.Indicators["close"])) {
		t.Fatalf("latest close decimal: expected %f, got %s", latest.Indicators["close"], row.LatestClose)
	}
}
