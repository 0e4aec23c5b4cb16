// Package cli is the guild ledger command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"guild_ledger/internal/app"
)

// Loader builds the application for a command. Commands that never touch the
// ledger do not call it.
type Loader func(ctx context.Context) (*app.App, error)

// NewRootCmd returns the root command with every subcommand registered.
func NewRootCmd(load Loader) *cobra.Command {
	root := &cobra.Command{
		Use:   "guild-ledger",
		Short: "Keep the guild points spreadsheets up to date",
		Long: `guild-ledger credits event participants, adjusts member stats and
onboards recruits in the guild's Google Sheets ledger.

Commands can be run one-off from the shell or served over HTTP with 'serve'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("actor", "cli", "Name recorded in the command log")

	root.AddCommand(ServeCmd(load))
	root.AddCommand(LogEventCmd(load))
	root.AddCommand(AddCmd(load))
	root.AddCommand(RemoveCmd(load))
	root.AddCommand(InspectCmd(load))
	root.AddCommand(OnboardCmd(load))
	root.AddCommand(HistoryCmd(load))
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := NewRootCmd(app.Build)
	if err := root.ExecuteContext(context.Background()); err != nil {
		card := Card{Kind: KindError, Title: "Command failed"}
		card.Add("error", err.Error())
		card.Render(os.Stderr)
		os.Exit(1)
	}
}

// withApp loads the application, runs fn and closes the application afterwards.
func withApp(cmd *cobra.Command, load Loader, fn func(a *app.App) error) (err error) {
	a, err := load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()
	return fn(a)
}

func actorFlag(cmd *cobra.Command) string {
	actor, _ := cmd.Flags().GetString("actor")
	return actor
}
