package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"statswatch/internal/app"
	"statswatch/internal/config"
	"statswatch/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "statswatch",
	Short: "statswatch monitors a statistics page and mails on metric changes.",
}

// ExecuteContext runs the CLI; command errors terminate the process.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*app.Application, error) {
	cfg := config.Load()
	return app.New(ctx, cfg, logging.New(cfg.Logging.Level))
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
