package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/expenso/internal/export"
	"github.com/MrJamesThe3rd/expenso/internal/importer"
	"github.com/MrJamesThe3rd/expenso/internal/queue"
	"github.com/MrJamesThe3rd/expenso/internal/session"
)

func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		bank   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "import <sheet> <file>",
		Short: "Import a bank statement CSV into a sheet",
		Long: `Parse a bank statement and add its rows to a sheet.

Categories are filled from learned suggestions. With --dry-run the parsed
rows are printed and nothing is stored.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), rootOpts, func(ctx context.Context, sess *session.Session) error {
				sheets, err := sess.Ledger.Sheets(ctx)
				if err != nil {
					return err
				}

				sheet, err := findSheet(sheets, args[0])
				if err != nil {
					return err
				}

				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()

				drafts, err := importer.NewService(sess.Matching, nil).Import(ctx, importer.Bank(bank), f)
				if err != nil {
					return err
				}

				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

				if dryRun {
					return out.Print(drafts, func(w io.Writer) {
						for _, d := range drafts {
							fmt.Fprintf(w, "%s  %-6s %10s  %-12s %s\n",
								d.CreatedAt.Format("2006-01-02"), d.Kind, d.Amount.StringFixed(2), d.Category, d.Purpose)
						}
						fmt.Fprintf(w, "%d rows (dry run)\n", len(drafts))
					})
				}

				txs, err := sess.Ledger.ImportTransactions(ctx, sheet.ID, drafts)
				if errors.Is(err, queue.ErrNotQueued) {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				} else if err != nil {
					return err
				}

				return out.Print(map[string]int{"imported": len(txs)}, func(w io.Writer) {
					fmt.Fprintf(w, "imported %d transactions into %s\n", len(txs), sheet.Name)
				})
			})
		},
	}

	cmd.Flags().StringVar(&bank, "bank", string(importer.BankCGD), "statement format")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse only")

	return cmd
}

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dir     string
		summary bool
	)

	cmd := &cobra.Command{
		Use:   "export <sheet>",
		Short: "Write a sheet to CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), rootOpts, func(ctx context.Context, sess *session.Session) error {
				sheets, err := sess.Ledger.Sheets(ctx)
				if err != nil {
					return err
				}

				sheet, err := findSheet(sheets, args[0])
				if err != nil {
					return err
				}

				svc := export.NewService(sess.Ledger)

				if summary {
					text, err := svc.Summary(ctx, sheet.ID)
					if err != nil {
						return err
					}

					_, err = io.WriteString(cmd.OutOrStdout(), text)
					return err
				}

				if dir == "-" {
					return svc.WriteCSV(ctx, sheet.ID, cmd.OutOrStdout())
				}

				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("creating %s: %w", dir, err)
				}

				path := filepath.Join(dir, export.Filename(sheet))

				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()

				if err := svc.WriteCSV(ctx, sheet.ID, f); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), path)

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "output", "o", ".", "output directory, or - for stdout")
	cmd.Flags().BoolVar(&summary, "summary", false, "print the text summary instead")

	return cmd
}
