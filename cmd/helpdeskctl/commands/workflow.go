package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-routing/internal/app"
	"github.com/spec-kit/helpdesk-routing/internal/service"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow <ticket-id>",
	Short: "Run the assignment workflow for one ticket and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if timeout := a.Config.Workflow.Timeout(); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			res, err := a.Workflow.OnTicketCreated(ctx, service.TicketCreatedInput{TicketID: args[0]})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}
