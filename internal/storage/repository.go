package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"sellwatcher/internal/schema"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
)

// TradeStore lists currently open positions.
type TradeStore interface {
	ListActiveTrades(ctx context.Context) ([]ActiveTrade, error)
}

// SnapshotStore resolves market snapshots by id and by latest timestamp.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, id int64) (*Snapshot, error)
	LatestSnapshot(ctx context.Context, symbol string) (*Snapshot, error)
}

// SignalStore persists and lists suggested signals.
type SignalStore interface {
	UpsertSignal(ctx context.Context, sig SuggestedSignal) error
	ListSignals(ctx context.Context, limit int) ([]SuggestedSignal, error)
}

// Tables names the three collections this subsystem touches.
type Tables struct {
	Snapshots    string
	ActiveTrades string
	Signals      string
}

// Store aggregates access to snapshots, active trades, and suggested signals.
// Table names come from configuration, so every statement is rendered once at
// construction with sanitised identifiers.
type Store struct {
	pool *pgxpool.Pool

	listTradesSQL       string
	getSnapshotSQL      string
	latestSnapshotSQL   string
	snapshotsBetweenSQL string
	upsertSignalSQL     string
	listSignalsSQL      string
	createSignalsSQL    string
	signalIndexSQL      string
}

// NewStore wires a pgx pool and configured table names into a Store.
func NewStore(pool *pgxpool.Pool, tables Tables) *Store {
	snapshots := pgx.Identifier{tables.Snapshots}.Sanitize()
	trades := pgx.Identifier{tables.ActiveTrades}.Sanitize()
	signals := pgx.Identifier{tables.Signals}.Sanitize()

	cols := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		cols = append(cols, pgx.Identifier{f.Name}.Sanitize())
	}
	snapshotCols := "id, symbol, ts, " + strings.Join(cols, ", ")

	return &Store{
		pool: pool,

		listTradesSQL: fmt.Sprintf(
			`SELECT symbol, open_snapshot_ref FROM %s;`, trades),

		getSnapshotSQL: fmt.Sprintf(
			`SELECT %s FROM %s WHERE id = $1;`, snapshotCols, snapshots),

		latestSnapshotSQL: fmt.Sprintf(
			`SELECT %s FROM %s WHERE symbol = $1 ORDER BY ts DESC LIMIT 1;`,
			snapshotCols, snapshots),

		snapshotsBetweenSQL: fmt.Sprintf(
			`SELECT %s FROM %s WHERE symbol = $1 AND ts >= $2 AND ts < $3 ORDER BY ts;`,
			snapshotCols, snapshots),

		upsertSignalSQL: fmt.Sprintf(
			`INSERT INTO %s (
        symbol,
        signal_type,
        score,
        open_snapshot_id,
        close_snapshot_id,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (symbol, signal_type) DO UPDATE
    SET
        score             = EXCLUDED.score,
        open_snapshot_id  = EXCLUDED.open_snapshot_id,
        close_snapshot_id = EXCLUDED.close_snapshot_id,
        created_at        = EXCLUDED.created_at;`, signals),

		listSignalsSQL: fmt.Sprintf(
			`SELECT symbol, signal_type, score, open_snapshot_id, close_snapshot_id, created_at
    FROM %s
    ORDER BY created_at DESC
    LIMIT $1;`, signals),

		createSignalsSQL: fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
        symbol            TEXT        NOT NULL,
        signal_type       TEXT        NOT NULL,
        score             NUMERIC     NOT NULL,
        open_snapshot_id  BIGINT      NOT NULL,
        close_snapshot_id BIGINT      NOT NULL,
        created_at        TIMESTAMPTZ NOT NULL
    );`, signals),

		signalIndexSQL: fmt.Sprintf(
			`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (symbol, signal_type);`,
			pgx.Identifier{tables.Signals + "_symbol_signal_type_key"}.Sanitize(), signals),
	}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the suggested-signals table and its unique
// (symbol, signal_type) index if absent. The upsert path relies on that index;
// snapshot and trade tables belong to external processes and are not touched.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, s.createSignalsSQL); execErr != nil {
		return fmt.Errorf("create signals table: %w", execErr)
	}
	if _, execErr := pool.Exec(ctx, s.signalIndexSQL); execErr != nil {
		return fmt.Errorf("create signal unique index: %w", execErr)
	}
	return nil
}

// ListActiveTrades fetches every open position in one pass.
func (s *Store) ListActiveTrades(ctx context.Context) ([]ActiveTrade, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, s.listTradesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list active trades: %w", queryErr)
	}
	defer rows.Close()

	trades := make([]ActiveTrade, 0)
	for rows.Next() {
		var trade ActiveTrade
		var ref sql.NullString
		if err := rows.Scan(&trade.Symbol, &ref); err != nil {
			return nil, err
		}
		if ref.Valid {
			value := ref.String
			trade.OpenSnapshotRef = &value
		}
		trades = append(trades, trade)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return trades, nil
}

// GetSnapshot resolves a snapshot by id. Returns ErrNotFound when absent.
func (s *Store) GetSnapshot(ctx context.Context, id int64) (*Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	snapshot, scanErr := scanSnapshot(pool.QueryRow(ctx, s.getSnapshotSQL, id))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot %d: %w", id, scanErr)
	}
	return snapshot, nil
}

// LatestSnapshot resolves the maximum-timestamp snapshot for a symbol.
// Returns ErrNotFound when the symbol has no snapshots at all.
func (s *Store) LatestSnapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	snapshot, scanErr := scanSnapshot(pool.QueryRow(ctx, s.latestSnapshotSQL, symbol))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("latest snapshot for %s: %w", symbol, scanErr)
	}
	return snapshot, nil
}

// ListSnapshotsBetween lists a symbol's snapshots within a time window.
func (s *Store) ListSnapshotsBetween(ctx context.Context, symbol string, from, to time.Time) ([]Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, s.snapshotsBetweenSQL, symbol, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		snapshot, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snapshots = append(snapshots, *snapshot)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snapshots, nil
}

// UpsertSignal inserts or overwrites the signal keyed by (symbol, signal_type).
func (s *Store) UpsertSignal(ctx context.Context, sig SuggestedSignal) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, s.upsertSignalSQL,
		sig.Symbol,
		sig.SignalType,
		sig.Score.String(),
		sig.OpenSnapshotID,
		sig.CloseSnapshotID,
		sig.CreatedAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert signal: %w", execErr)
	}
	return nil
}

// ListSignals lists the most recently (re)computed suggested signals.
func (s *Store) ListSignals(ctx context.Context, limit int) ([]SuggestedSignal, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, s.listSignalsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list signals: %w", queryErr)
	}
	defer rows.Close()

	signals := make([]SuggestedSignal, 0, limit)
	for rows.Next() {
		var sig SuggestedSignal
		var scoreStr string
		if err := rows.Scan(
			&sig.Symbol,
			&sig.SignalType,
			&scoreStr,
			&sig.OpenSnapshotID,
			&sig.CloseSnapshotID,
			&sig.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		sig.Score, convErr = decimal.NewFromString(scoreStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse signal score: %w", convErr)
		}
		signals = append(signals, sig)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return signals, nil
}

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var (
		id     int64
		symbol string
		ts     time.Time
	)

	values := make([]sql.NullFloat64, len(schema.Fields))
	dest := make([]any, 0, 3+len(values))
	dest = append(dest, &id, &symbol, &ts)
	for i := range values {
		dest = append(dest, &values[i])
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		ID:         id,
		Symbol:     symbol,
		Timestamp:  ts,
		Indicators: make(map[string]float64, len(values)),
	}
	for i, f := range schema.Fields {
		if values[i].Valid {
			snapshot.Indicators[f.Name] = values[i].Float64
		}
	}
	return snapshot, nil
}
