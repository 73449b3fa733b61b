package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/session"
	"github.com/MrJamesThe3rd/expenso/internal/syncengine"
)

type statusOutput struct {
	syncengine.Status
	Sheets ledger.Overview `json:"sheets"`
}

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue sizes, connectivity and per-sheet sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), rootOpts, func(ctx context.Context, sess *session.Session) error {
				status, err := sess.Engine.Status(ctx)
				if err != nil {
					return err
				}

				overview, err := sess.Ledger.SyncOverview(ctx)
				if err != nil {
					return err
				}

				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

				return out.Print(statusOutput{Status: status, Sheets: overview}, func(w io.Writer) {
					last := "never"
					if status.LastSync != nil {
						last = status.LastSync.Local().Format(time.DateTime)
					}

					fmt.Fprintf(w, "online:      %t\n", status.Online)
					fmt.Fprintf(w, "queued:      %d\n", status.QueuedOperations)
					fmt.Fprintf(w, "pending:     %d\n", status.PendingOperations)
					fmt.Fprintf(w, "unsynced:    %d\n", status.TotalUnsynced)
					fmt.Fprintf(w, "last sync:   %s\n", last)
					fmt.Fprintf(w, "sheets:      %d (%d synced, %d local, %d error)\n",
						overview.Total, overview.Synced, overview.Local, overview.Error)
				})
			})
		},
	}
}

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a sync cycle now",
		Long: `Run one sync cycle against the remote spreadsheet service.

Exits non-zero when the cycle could not run, for example when offline or
when another cycle is in progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), rootOpts, func(ctx context.Context, sess *session.Session) error {
				result := sess.Engine.ManualSync(ctx)

				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

				err := out.Print(result, func(w io.Writer) {
					fmt.Fprintln(w, result.Message)
					if result.Success {
						fmt.Fprintf(w, "synced %d, failed %d, retried %d, deferred %d, waiting %d, remaining %d\n",
							result.Summary.Synced, result.Summary.Failed, result.Summary.Retried,
							result.Summary.Deferred, result.Summary.Waiting, result.Summary.Remaining)
					}
				})
				if err != nil {
					return err
				}

				if !result.Success {
					return errors.New(result.Message)
				}

				return nil
			})
		},
	}
}
