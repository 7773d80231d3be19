package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Runs a single monitoring cycle now and exits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer application.Close()

		return application.Monitor().RunCycleNow(cmd.Context())
	},
}
