package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/offsync/internal/buildinfo"
	"github.com/dmitrijs2005/offsync/internal/client/config"
	"github.com/spf13/cobra"
)

// Opener builds the App a command runs against. NewApp in production.
type Opener func(ctx context.Context, cfg *config.Config) (*App, error)

// NewRootCommand builds the command tree. Each command opens its own App
// and closes it when done.
func NewRootCommand(cfg *config.Config, open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "offsync",
		Short:         "Offline-first record store with server sync",
		Version:       buildinfo.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	with := func(fn func(ctx context.Context, a *App, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := open(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			a.out = cmd.OutOrStdout()
			a.reader = bufio.NewReader(cmd.InOrStdin())
			return fn(ctx, a, cmd, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "register",
			Short: "Create an account on the server",
			Args:  cobra.NoArgs,
			RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
				return a.Register(ctx)
			}),
		},
		&cobra.Command{
			Use:   "login",
			Short: "Log in and bootstrap local data on first use",
			Args:  cobra.NoArgs,
			RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
				return a.Login(ctx)
			}),
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Forget the stored session",
			Args:  cobra.NoArgs,
			RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
				return a.Logout(ctx)
			}),
		},
		newPutCommand(with),
		&cobra.Command{
			Use:   "get <table> <id>",
			Short: "Show one record",
			Args:  cobra.ExactArgs(2),
			RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, args []string) error {
				return a.Get(ctx, args[0], args[1])
			}),
		},
		newListCommand(with),
		&cobra.Command{
			Use:   "delete <table> <id>",
			Short: "Delete a record locally and, once synced, on the server",
			Args:  cobra.ExactArgs(2),
			RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, args []string) error {
				return a.Delete(ctx, args[0], args[1])
			}),
		},
		newSyncCommand(with),
		newResyncCommand(with),
		&cobra.Command{
			Use:   "status",
			Short: "Show connectivity, sync state and pending changes",
			Args:  cobra.NoArgs,
			RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
				return a.Status(ctx)
			}),
		},
		&cobra.Command{
			Use:   "queue",
			Short: "List changes waiting to be retried",
			Args:  cobra.NoArgs,
			RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
				return a.Queue(ctx)
			}),
		},
		&cobra.Command{
			Use:   "export <name>",
			Short: "Back up all local data",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, args []string) error {
				return a.Export(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "import <name>",
			Short: "Replace all local data with a backup",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, args []string) error {
				return a.Import(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "run",
			Short: "Interactive mode with background sync",
			Args:  cobra.NoArgs,
			RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
				a.Run(ctx)
				return nil
			}),
		},
	)

	return root
}

type runner = func(fn func(ctx context.Context, a *App, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error

func newPutCommand(with runner) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "put <table> [json]",
		Short: "Create a record, or replace one with --id",
		Long:  "Create a record, or replace the payload of an existing one with --id. Without a json argument the payload is read from stdin.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, args []string) error {
			return a.Put(ctx, args[0], id, rest(args, 1))
		}),
	}
	cmd.Flags().StringVar(&id, "id", "", "id of the record to replace")
	return cmd
}

func newListCommand(with runner) *cobra.Command {
	var pending bool
	cmd := &cobra.Command{
		Use:   "list <table>",
		Short: "List records of a table",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, args []string) error {
			return a.List(ctx, args[0], pending)
		}),
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "only records not yet synced")
	return cmd
}

func newSyncCommand(with runner) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push local changes and pull server changes",
		Args:  cobra.NoArgs,
		RunE: with(func(ctx context.Context, a *App, _ *cobra.Command, _ []string) error {
			return a.Sync(ctx, force)
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "wait for a running sync instead of failing")
	return cmd
}

func newResyncCommand(with runner) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Discard local data and download everything from the server",
		Long:  "Discard all local data, including changes not yet pushed, and download every table from the server. Requires --yes or interactive confirmation.",
		Args:  cobra.NoArgs,
		RunE: with(func(ctx context.Context, a *App, cmd *cobra.Command, _ []string) error {
			if !yes {
				errOut := cmd.ErrOrStderr()
				fmt.Fprintln(errOut, "WARNING: this discards all local data, including unsynced changes.")
				answer, err := getSimpleText(a.reader, "Type 'yes' to continue", errOut)
				if err != nil {
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				if strings.TrimSpace(answer) != "yes" {
					fmt.Fprintln(errOut, "Aborted.")
					return nil
				}
			}
			return a.Resync(ctx)
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}
