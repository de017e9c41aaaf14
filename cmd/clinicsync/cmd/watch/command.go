// Package watch implements the watch command.
package watch

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/clinicsync"
	"github.com/agentstation/clinicsync/cmd/application"
	"github.com/agentstation/clinicsync/internal/cmd/output"
	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/events"
)

// Views lists the names accepted by --views, in print order.
var Views = []string{"status", "queue", "beds", "alerts", "appointments", "stats"}

// Options holds the watch flags.
type Options struct {
	Duration time.Duration
	Views    []string
	// ExitOnFatal stops watching once retries are exhausted.
	ExitOnFatal bool
}

// NewCommand creates the watch command.
func NewCommand(app application.Application) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:     "watch",
		GroupID: "core",
		Short:   "Connect and follow the event stream",
		Long: `Watch connects to the event server, logs every connection status
change and alert, and prints the dashboard views when it stops.

It stops on Ctrl+C, after --duration, or when retries are exhausted
with --exit-on-fatal.`,
		Example: `  clinicsync watch
  clinicsync watch --source scripted --duration 10s -o json
  clinicsync watch --views queue,alerts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return Run(cmd.Context(), app, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().StringSliceVar(&opts.Views, "views", Views, "views to print on exit: "+strings.Join(Views, ", "))
	cmd.Flags().BoolVar(&opts.ExitOnFatal, "exit-on-fatal", true, "stop when reconnect attempts are exhausted")

	return cmd
}

// Run connects the client and follows it until ctx is done, the duration
// elapses or a fatal status arrives, then prints the requested views.
func Run(ctx context.Context, app application.Application, opts *Options, w io.Writer) error {
	for _, v := range opts.Views {
		if !slices.Contains(Views, v) {
			return errors.NewValidationError("views", v, "must be one of "+strings.Join(Views, ", "))
		}
	}

	client, err := app.Client()
	if err != nil {
		return err
	}
	logger := app.Logger()

	client.OnAlert(func(a events.Alert) {
		logger.Warn().
			Str("alert_id", a.ID).
			Str("severity", string(a.Severity)).
			Bool("action_required", a.ActionRequired).
			Msg(a.Title)
	})
	client.OnEvent(func(env events.Envelope) {
		logger.Debug().Str("kind", env.Kind.String()).Str("source", env.Source).Msg("Event applied")
	})

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	// Watch before connecting so the first transition is not missed.
	changes := client.Watch(ctx)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	var fatal error
	for st := range changes {
		event := logger.Info().Str("phase", string(st.Phase)).Int("attempt", st.Attempt)
		if st.LastError != nil {
			event = event.Str("error", st.ErrorMessage())
		}
		event.Msg("Connection status changed")

		if st.Fatal && opts.ExitOnFatal {
			fatal = fmt.Errorf("%w: %s", errors.ErrRetriesExhausted, st.ErrorMessage())
			break
		}
	}

	if err := Print(w, app.OutputFormat(), client, opts.Views); err != nil {
		return err
	}
	return fatal
}

// Print writes the named views of client in the given format.
func Print(w io.Writer, format string, client clinicsync.Client, views []string) error {
	detected := output.DetectFormat(format)
	formatter := output.NewFormatter(detected)
	for _, name := range views {
		var view output.View
		switch name {
		case "status":
			view = output.StatusView(client.Status())
		case "queue":
			view = output.QueueView(client.Queue())
		case "beds":
			view = output.BedsView(client.Beds())
		case "alerts":
			view = output.AlertsView(client.Alerts())
		case "appointments":
			view = output.AppointmentsView(client.Appointments())
		case "stats":
			view = output.StatsView(client.Stats())
		default:
			continue
		}
		if detected == output.FormatTable && len(views) > 1 {
			fmt.Fprintf(w, "# %s\n", name)
		}
		if err := formatter.Format(w, view); err != nil {
			return err
		}
	}
	return nil
}
