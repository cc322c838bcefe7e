package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"schnitzelbot/internal/app"
	logx "schnitzelbot/pkg/logx"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled menu check until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(ctx, opts.configPath)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer stopCancel()
				_ = a.Stop(stopCtx)
				return err
			}

			select {
			case <-ctx.Done():
				a.Log().Info("shutdown requested")
			case <-a.Done():
				a.Log().Warn("background task stopped, shutting down")
			}

			stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer stopCancel()
			if err := a.Stop(stopCtx); err != nil {
				a.Log().Error("shutdown incomplete", logx.Err(err))
				return err
			}
			return nil
		},
	}
}
