package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-routing/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, workflow runner, notification worker and SLA scheduler",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.Serve(ctx)
		})
	},
}
