package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var addName *string

func init() {
	addName = addCmd.Flags().String("name", "", "Display name for the source (defaults to the URL).")
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <url> [--name <name>]",
	Short: "Seeds a source URL; per-item discovery happens on the next cycle.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer application.Close()

		name := *addName
		if name == "" {
			name = args[0]
		}

		item, err := application.Monitor().AddSource(cmd.Context(), name, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("tracking %s (id=%d)\n", item.Name, item.ID)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <item-id>",
	Short: "Stops tracking an item and deletes its history.",
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

		if err := application.Monitor().RemoveItem(cmd.Context(), itemID); err != nil {
			return err
		}

		fmt.Printf("removed item %d\n", itemID)
		return nil
	},
}
