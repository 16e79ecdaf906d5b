package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-routing/internal/api/dto"
	"github.com/spec-kit/helpdesk-routing/internal/app"
	"github.com/spec-kit/helpdesk-routing/internal/domain"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage assignee profiles",
}

var setSkillsCmd = &cobra.Command{
	Use:   "set-skills <user-id> <skill>...",
	Short: "Replace a user's skill tags",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			user, err := a.Users.SetSkills(ctx, args[0], args[1:])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto.NewUserResponse(user))
		})
	},
}

var setRoleCmd = &cobra.Command{
	Use:   "set-role <user-id> <user|moderator|admin>",
	Short: "Change a user's role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := domain.Role(args[1])
		if !role.Valid() {
			return fmt.Errorf("invalid role %q", args[1])
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			user, err := a.Users.SetRole(ctx, args[0], role)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dto.NewUserResponse(user))
		})
	},
}

func init() {
	usersCmd.AddCommand(setSkillsCmd, setRoleCmd)
}
