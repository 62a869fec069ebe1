package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"sellwatcher/internal/app"
)

var (
	simulateOpenID int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Score one open snapshot against the latest snapshot without persisting",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateOpenID <= 0 {
			return errors.New("--open-id must be greater than 0")
		}

		opts := app.SimulateOptions{
			OpenSnapshotID: simulateOpenID,
		}
		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateOpenID, "open-id", 0, "Open snapshot id to pair and score")
}
