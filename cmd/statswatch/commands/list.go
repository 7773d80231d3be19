package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists tracked items with their latest metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer application.Close()

		statuses, err := application.Monitor().ListItems(cmd.Context())
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Name", "Users", "Rating", "Reviews", "Last Checked", "URL"})
		for _, st := range statuses {
			users, rating, reviews, checked := "-", "-", "-", "never"
			if st.Latest != nil {
				users = fmt.Sprintf("%d", st.Latest.Metrics.Users)
				rating = fmt.Sprintf("%.2f", st.Latest.Metrics.Rating)
				reviews = fmt.Sprintf("%d", st.Latest.Metrics.Reviews)
				checked = st.Latest.CapturedAt.Format(time.RFC3339)
			}
			t.AppendRow(table.Row{st.Item.ID, st.Item.Name, users, rating, reviews, checked, st.Item.URL})
		}
		t.Render()
		return nil
	},
}
