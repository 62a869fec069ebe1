package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"sellwatcher/internal/pairing"
	"sellwatcher/internal/scoring"
	"sellwatcher/internal/storage"
)

// Simulate scores one open snapshot against its instrument's latest snapshot
// and prints the result without persisting anything. Operator dry-run for the
// loaded model.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	model, err := a.loadModel()
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	open, err := store.GetSnapshot(ctx, opts.OpenSnapshotID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("snapshot %d does not exist", opts.OpenSnapshotID)
		}
		return err
	}

	ref := strconv.FormatInt(open.ID, 10)
	trade := storage.ActiveTrade{Symbol: open.Symbol, OpenSnapshotRef: &ref}

	pairer := pairing.New(store, a.Logger)
	row, skip, err := pairer.Pair(ctx, trade)
	if err != nil {
		return err
	}
	if skip != nil {
		return fmt.Errorf("cannot pair snapshot %d: %s %s", opts.OpenSnapshotID, skip.Reason, skip.Detail)
	}

	scored, err := scoring.NewScorer(model, a.Logger).Score([]*pairing.PairedRow{row})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "symbol: %s\nopen snapshot: %d\nclose snapshot: %d\nlast close: %s\nsell score: %.4f\nthreshold: %.4f\n",
		row.Symbol,
		row.OpenSnapshotID,
		row.CloseSnapshotID,
		row.LatestClose.String(),
		scored[0].Score,
		a.Config.Model.Threshold,
	)
	return nil
}
