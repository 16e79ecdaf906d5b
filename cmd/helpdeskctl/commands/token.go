package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-routing/internal/auth"
)

var tokenScopes []string

var tokenCmd = &cobra.Command{
	Use:   "token <service>",
	Short: "Issue a service token for an internal caller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scopes := tokenScopes
		if len(scopes) == 0 {
			scopes = auth.AllScopes()
		}
		tm := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTLMinutes)
		token, exp, err := tm.GenerateToken(args[0], scopes...)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", nil, "scopes to grant (workflow, tickets, sla); defaults to all")
}
