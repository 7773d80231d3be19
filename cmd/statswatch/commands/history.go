package commands

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyHours *int

func init() {
	historyHours = historyCmd.Flags().Int("hours", 168, "How far back to look.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <item-id> [--hours <n>]",
	Short: "Shows an item's snapshot history, oldest first.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}

		application, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer application.Close()

		snaps, err := application.Monitor().History(cmd.Context(), itemID, *historyHours)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Captured", "Users", "Rating", "Reviews"})
		for _, snap := range snaps {
			t.AppendRow(table.Row{
				snap.CapturedAt.Format(time.RFC3339),
				snap.Metrics.Users,
				snap.Metrics.Rating,
				snap.Metrics.Reviews,
			})
		}
		t.Render()
		return nil
	},
}
