package commands

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var changesLimit *int

func init() {
	changesLimit = changesCmd.Flags().Int("limit", 50, "Maximum number of changes to show.")
	rootCmd.AddCommand(changesCmd)
}

var changesCmd = &cobra.Command{
	Use:   "changes [--limit <n>]",
	Short: "Shows the most recent detected changes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer application.Close()

		rows, err := application.Monitor().RecentChanges(cmd.Context(), *changesLimit)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Detected", "Item", "Metric", "Old", "New", "Notified"})
		for _, row := range rows {
			t.AppendRow(table.Row{
				row.DetectedAt.Format(time.RFC3339),
				row.ItemName,
				row.Metric,
				row.OldValue,
				row.NewValue,
				row.Notified,
			})
		}
		t.Render()
		return nil
	},
}
