package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/clinicsync/cmd/clinicsync/cmd/decode"
	"github.com/agentstation/clinicsync/cmd/clinicsync/cmd/serve"
	"github.com/agentstation/clinicsync/cmd/clinicsync/cmd/watch"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(watch.NewCommand(a))
	rootCmd.AddCommand(serve.NewCommand(a))

	// Tools
	rootCmd.AddCommand(decode.NewCommand(a))
	rootCmd.AddCommand(a.newVersionCommand())
}

// newVersionCommand creates the version command.
func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		GroupID: "tools",
		Short:   "Show version information",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), a.build)
		},
	}
}
