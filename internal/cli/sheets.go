package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/expenso/internal/ledger"
	"github.com/MrJamesThe3rd/expenso/internal/queue"
	"github.com/MrJamesThe3rd/expenso/internal/session"
)

type sheetRow struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	SyncStatus   ledger.SyncStatus `json:"syncStatus"`
	Transactions int               `json:"transactions"`
	Totals       ledger.Totals     `json:"totals"`
}

func NewSheetsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List sheets with their totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), rootOpts, func(ctx context.Context, sess *session.Session) error {
				sheets, err := sess.Ledger.Sheets(ctx)
				if err != nil {
					return err
				}

				rows := make([]sheetRow, 0, len(sheets))
				for _, sh := range sheets {
					rows = append(rows, sheetRow{
						ID:           sh.ID,
						Name:         sh.Name,
						SyncStatus:   sh.SyncStatus,
						Transactions: len(sh.Transactions),
						Totals:       ledger.CalculateTotals(sh),
					})
				}

				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

				return out.Print(rows, func(w io.Writer) {
					if len(rows) == 0 {
						fmt.Fprintln(w, "no sheets")
						return
					}

					for _, r := range rows {
						fmt.Fprintf(w, "%s  %-30s %-8s %4d txs  balance %s\n",
							r.ID, r.Name, r.SyncStatus, r.Transactions, r.Totals.Balance.StringFixed(2))
					}
				})
			})
		},
	}

	cmd.AddCommand(newSheetsAddCommand(rootOpts))

	return cmd
}

func newSheetsAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create a sheet and queue it for sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), rootOpts, func(ctx context.Context, sess *session.Session) error {
				sheet, err := sess.Ledger.CreateSheet(ctx, args[0])
				if sheet == nil {
					return err
				}

				if errors.Is(err, queue.ErrNotQueued) {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				} else if err != nil {
					return err
				}

				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

				return out.Print(sheet, func(w io.Writer) {
					fmt.Fprintf(w, "created %s (%s)\n", sheet.Name, sheet.ID)
				})
			})
		},
	}
}
