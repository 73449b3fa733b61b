package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/expenso/internal/app"
	"github.com/MrJamesThe3rd/expenso/internal/config"
	"github.com/MrJamesThe3rd/expenso/internal/session"
)

func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop queued operations and synced records older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), rootOpts, func(ctx context.Context, sess *session.Session) error {
				ops, records, err := sess.Engine.Prune(ctx)
				if err != nil {
					return err
				}

				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

				return out.Print(map[string]int{"operations": ops, "records": records}, func(w io.Writer) {
					fmt.Fprintf(w, "pruned %d operations and %d records\n", ops, records)
				})
			})
		},
	}
}

func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	var syncedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the sync queue",
		Long: `Remove every queued operation and pending record. Sheets and
transactions are kept but will not reach the remote until resynced.

With --synced-only only records that already reached the remote are removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), rootOpts, func(ctx context.Context, sess *session.Session) error {
				if syncedOnly {
					n, err := sess.Engine.RemoveSynced(ctx)
					if err != nil {
						return err
					}

					fmt.Fprintf(cmd.OutOrStdout(), "removed %d synced records\n", n)

					return nil
				}

				if err := sess.Engine.ClearAll(ctx); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), "sync queue cleared")

				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&syncedOnly, "synced-only", false, "only remove synced records")

	return cmd
}

func NewForgetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <user>",
		Short: "Erase every document stored for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), rootOpts, func(ctx context.Context, _ *config.Config, a *app.App) error {
				if err := a.Sessions.Forget(ctx, args[0]); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", args[0])

				return nil
			})
		},
	}
}
