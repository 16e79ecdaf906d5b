package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-routing/internal/app"
	"github.com/spec-kit/helpdesk-routing/internal/worker"
)

var sweepTimeout time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one SLA sweep now and print the counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			res, err := worker.RunSweep(ctx, a.Sweeper, sweepTimeout, a.Logger)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepTimeout, "timeout", 10*time.Minute, "abort the sweep after this long")
}
