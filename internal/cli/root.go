package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/expenso/internal/app"
	"github.com/MrJamesThe3rd/expenso/internal/config"
	"github.com/MrJamesThe3rd/expenso/internal/logging"
	"github.com/MrJamesThe3rd/expenso/internal/session"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	User    string
	Format  string // "json" | "text"
	Offline bool
	Verbose bool
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "expensoctl",
		Short: "Manage local expense data and its sync queue",
		Long: `expensoctl works on the same local store as the API and the TUI.

Every command acts on one user's data, the configured USER_ID unless
--user is given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.User, "user", "u", "", "user id (defaults to USER_ID)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at the configured level instead of warn")
	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "do not probe connectivity; sync is skipped")

	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewSheetsCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewPruneCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewForgetCommand(opts))

	return cmd
}

// runApp opens the app for one command and closes it afterwards.
func runApp(ctx context.Context, opts *RootOptions, fn func(ctx context.Context, cfg *config.Config, a *app.App) error) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if !opts.Verbose {
		cfg.Log.Level = "warn"
	}

	logger, logCloser, err := logging.New(logging.Options(cfg.Log))
	if err != nil {
		return err
	}
	defer logCloser.Close()

	a, err := app.Open(ctx, cfg, logger, app.Options{Offline: opts.Offline})
	if err != nil {
		return fmt.Errorf("opening app: %w", err)
	}
	defer a.Close()

	if opts.User == "" {
		opts.User = cfg.App.UserID
	}

	return fn(ctx, cfg, a)
}

// runSession is runApp for commands that act on the selected user's session.
func runSession(ctx context.Context, opts *RootOptions, fn func(ctx context.Context, sess *session.Session) error) error {
	return runApp(ctx, opts, func(ctx context.Context, _ *config.Config, a *app.App) error {
		sess, err := a.Sessions.Get(ctx, opts.User)
		if err != nil {
			return err
		}

		return fn(ctx, sess)
	})
}
