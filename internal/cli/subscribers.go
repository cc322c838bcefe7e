package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"schnitzelbot/internal/app"
	"schnitzelbot/internal/subscriber"
	"schnitzelbot/internal/transport"
)

const adminTimeout = 20 * time.Second

func newSubscribersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscribers",
		Aliases: []string{"subs"},
		Short:   "Manage notification subscribers",
	}
	cmd.AddCommand(newSubscribersAddCmd(opts))
	cmd.AddCommand(newSubscribersListCmd(opts))
	cmd.AddCommand(newSubscribersRemoveCmd(opts))
	return cmd
}

func newSubscribersAddCmd(opts *rootOptions) *cobra.Command {
	var s subscriber.Subscriber
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a subscriber",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s.Provider = transport.NormalizeProvider(s.Provider)
			if known := app.NewTransports().Providers(); !slices.Contains(known, s.Provider) {
				return fmt.Errorf("unknown provider %q (known: %s)", s.Provider, strings.Join(known, ", "))
			}
			if err := s.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
			defer cancel()
			return withApp(ctx, opts.configPath, func(ctx context.Context, a *app.App) error {
				saved, err := a.Store().PutSubscriber(ctx, s)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved subscriber %s (%s)\n", saved.ID, saved.Label())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&s.ID, "id", "", "subscriber id (generated when empty)")
	cmd.Flags().StringVar(&s.Provider, "provider", transport.ProviderSlack, "delivery provider")
	cmd.Flags().StringVar(&s.Credential, "credential", "", "bot token or webhook URL")
	cmd.Flags().StringVar(&s.DestinationID, "destination", "", "channel or chat id")
	cmd.Flags().StringVar(&s.DisplayName, "name", "", "display name")
	_ = cmd.MarkFlagRequired("credential")
	return cmd
}

func newSubscribersListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subscribers without their credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
			defer cancel()
			return withApp(ctx, opts.configPath, func(ctx context.Context, a *app.App) error {
				subs, err := subscriber.NewRegistry(a.Store()).List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tPROVIDER\tDESTINATION\tNAME")
				for _, s := range subs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Provider, s.DestinationID, s.Label())
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d subscriber(s)\n", len(subs))
				return nil
			})
		},
	}
}

func newSubscribersRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a subscriber",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), adminTimeout)
			defer cancel()
			return withApp(ctx, opts.configPath, func(ctx context.Context, a *app.App) error {
				if err := a.Store().DeleteSubscriber(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed subscriber %s\n", args[0])
				return nil
			})
		},
	}
}
