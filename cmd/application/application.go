// Package application is the seam between the CLI commands and the process
// that hosts them. Commands take an Application, never the concrete app, so
// tests can hand them a Mock wired to a scripted client:
//
//	mock := &application.Mock{
//	    ClientFunc: func() (clinicsync.Client, error) {
//	        return clinicsync.New(clinicsync.WithSource(transport.NewScripted(nil)))
//	    },
//	}
//	err := watch.Run(ctx, mock, watch.Options{Views: []string{"queue"}}, &buf)
package application

import (
	"fmt"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agentstation/clinicsync"
	"github.com/agentstation/clinicsync/internal/server"
)

// Application is what a command may ask of the host. Implementations must be
// safe for concurrent use.
type Application interface {
	// Client returns the sync client, built on first use. Every call
	// returns the same instance until the host shuts down.
	Client() (clinicsync.Client, error)

	// Registry holds the client's collectors and backs /metrics.
	Registry() *prometheus.Registry

	ServerConfig() server.Config
	Logger() *zerolog.Logger

	// OutputFormat is the --format value; empty means auto-detect.
	OutputFormat() string

	Build() BuildInfo
}

// BuildInfo identifies the running binary. Fields are stamped at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
	BuiltBy string
}

// String renders the block printed by `clinicsync version`.
func (b BuildInfo) String() string {
	return fmt.Sprintf("clinicsync version %s\ncommit: %s\nbuilt: %s\nbuilt by: %s\ngo version: %s\nplatform: %s/%s\n",
		b.Version, b.Commit, b.Date, b.BuiltBy, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
