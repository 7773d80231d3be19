package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the monitor on its configured interval until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer application.Close()

		return application.Run(cmd.Context())
	},
}
