package app

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/agentstation/clinicsync/internal/cmd/output"
	"github.com/agentstation/clinicsync/pkg/logging"
)

// Execute builds the command tree and runs it with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "clinicsync",
		Short:   "Clinic dashboard event sync client",
		Version: a.build.Version,
		Long: `clinicsync keeps a live connection to the clinic event server and
maintains the dashboard views: the patient queue, the bed map, the alert
feed, the appointment board and the daily statistics.

It can watch the stream from a terminal, serve the views over HTTP with
WebSocket and Server-Sent Events feeds, or validate recorded frames offline.

Settings are read from $HOME/.clinicsync.yaml or ./.clinicsync.yaml (or the
file named by CLINICSYNC_CONFIG), .env files and CLINICSYNC_* variables.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "tools", Title: "Tools:"},
	)
	a.bindGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.SetVersionTemplate("clinicsync {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// bindGlobalFlags registers the flags every subcommand inherits. Connection
// flags only matter to commands that open the client.
func (a *App) bindGlobalFlags(fs *pflag.FlagSet) {
	c := a.config
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	fs.BoolVarP(&c.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	fs.BoolVar(&c.NoColor, "no-color", false, "disable colored output")
	fs.StringVarP(&c.Format, "format", "o", c.Format, "output format: table, json, yaml")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: trace, debug, info, warn, error, off (overrides -v/-q)")

	fs.StringVar(&c.Address, "address", c.Address, "event server address")
	fs.StringVar(&c.Source, "source", c.Source, "event source: websocket or scripted")
	fs.StringVar(&c.Script, "script", c.Script, "YAML script for the scripted source (default is the built-in demo)")
	fs.StringSliceVar(&c.Topics, "topics", c.Topics, "channels to subscribe to")
}

// setupCommand validates the global flags and installs the command logger.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	fs := cmd.Flags()
	format := mustGet(fs.GetString, "format")
	if _, err := output.ParseFormat(format); err != nil {
		return err
	}

	a.config.UpdateFromFlags(
		mustGet(fs.GetBool, "verbose"),
		mustGet(fs.GetBool, "quiet"),
		mustGet(fs.GetBool, "no-color"),
		format,
		mustGet(fs.GetString, "log-level"),
	)

	logger := NewLogger(a.config)
	ctx := commandContext(cmd.Context(), &logger, cmd.Name(), a.config)
	a.logger = logging.FromContext(ctx)
	cmd.SetContext(ctx)
	return nil
}

// commandContext tags logger with the command name and, for the websocket
// source, the event server address.
func commandContext(ctx context.Context, logger *zerolog.Logger, command string, config *Config) context.Context {
	ctx = logging.WithCommand(logging.WithLogger(ctx, logger), command)
	if config.Source != SourceScripted && config.Address != "" {
		ctx = logging.WithAddress(ctx, config.Address)
	}
	return ctx
}

// ExitOnError prints err to stderr and exits with status 1. A nil err is a no-op.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

// mustGet reads a flag registered by bindGlobalFlags. A lookup failure is a
// programming error.
func mustGet[T any](get func(string) (T, error), name string) T {
	v, err := get(name)
	if err != nil {
		panic("flag " + name + ": " + err.Error())
	}
	return v
}
