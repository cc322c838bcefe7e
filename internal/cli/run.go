package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"schnitzelbot/internal/app"
	"schnitzelbot/internal/runner"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Check today's menu once and exit",
		Long:  "Runs a single menu check. Exits non-zero when the check fails; a skipped week or no match is a success.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(ctx, opts.configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out, err := a.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), runner.Summary(out, nil))
			return nil
		},
	}
}

// withApp opens the app for a short administrative command.
func withApp(ctx context.Context, cfgPath string, fn func(ctx context.Context, a *app.App) error) error {
	a, err := app.New(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(ctx, a)
}
