package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-routing/internal/app"
	"github.com/spec-kit/helpdesk-routing/internal/config"
	"github.com/spec-kit/helpdesk-routing/internal/observability"
)

var (
	// Version is set at build time via ldflags.
	Version = "dev"

	verbose bool
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "helpdeskctl",
	Short: "Operate the helpdesk assignment and SLA service",
	Long: `helpdeskctl runs the helpdesk routing service and its one-off jobs:
manual SLA sweeps, assignment workflow runs for a single ticket, service
tokens for internal callers and assignee profile changes.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.Logger.Level = "debug"
		}
		logger, err = observability.NewLogger(cfg.Logger)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger.Debug("helpdeskctl starting", zap.String("version", Version))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, sweepCmd, workflowCmd, tokenCmd, usersCmd)
}

// withApp builds the service, runs fn and closes it again. SIGINT and SIGTERM cancel ctx.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
