package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints the current suggested signals.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	signals, err := store.ListSignals(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(signals) == 0 {
		fmt.Fprintln(os.Stdout, "no suggested signals found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Symbol\tType\tScore\tOpen Snapshot\tClose Snapshot\tComputed (UTC)")

	for _, sig := range signals {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%d\t%d\t%s\n",
			sanitizeInline(sig.Symbol),
			sig.SignalType,
			sig.Score.StringFixed(4),
			sig.OpenSnapshotID,
			sig.CloseSnapshotID,
			sig.CreatedAt.UTC().Format(time.RFC3339),
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	v = strings.ReplaceAll(v, "\t", " ")
	return strings.ReplaceAll(v, "\n", " ")
}
