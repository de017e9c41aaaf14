package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/clinicsync"
	"github.com/agentstation/clinicsync/cmd/application"
	"github.com/agentstation/clinicsync/internal/server"
	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/logging"
	"github.com/agentstation/clinicsync/pkg/transport"
)

func newClient(t *testing.T, reg prometheus.Registerer) clinicsync.Client {
	t.Helper()
	client, err := clinicsync.New(
		clinicsync.WithAddress("scripted://serve"),
		clinicsync.WithSource(transport.NewScripted(nil, transport.WithScriptedLogger(logging.NewNopLogger()))),
		clinicsync.WithLogger(logging.NewNopLogger()),
		clinicsync.WithRegisterer(reg),
	)
	require.NoError(t, err)
	t.Cleanup(client.Dispose)
	return client
}

func TestServeUntilCancelled(t *testing.T) {
	reg := prometheus.NewRegistry()
	client := newClient(t, reg)
	require.NoError(t, client.Connect())

	srv, err := server.New(client, server.DefaultConfig(), logging.NewNopLogger(), reg)
	require.NoError(t, err)
	srv.Start()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, srv.HTTPServer(), listener, srv, logging.NewNopLogger())
	}()

	url := fmt.Sprintf("http://%s/health", listener.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeListenerFailure(t *testing.T) {
	client := newClient(t, prometheus.NewRegistry())
	srv, err := server.New(client, server.DefaultConfig(), logging.NewNopLogger(), nil)
	require.NoError(t, err)
	srv.Start()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, listener.Close())

	err = Serve(context.Background(), srv.HTTPServer(), listener, srv, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	app := &application.Mock{
		ClientFunc: func() (clinicsync.Client, error) {
			return newClient(t, prometheus.NewRegistry()), nil
		},
	}

	cfg := server.DefaultConfig()
	cfg.AuthEnabled = true

	err := Run(context.Background(), app, cfg)
	var ce *errors.ConfigError
	assert.True(t, errors.As(err, &ce), "want ConfigError, got %v", err)
}

func TestCommandFlags(t *testing.T) {
	cmd := NewCommand(&application.Mock{})
	for _, name := range []string{"host", "port", "prefix", "cors", "cors-origins", "auth", "api-key", "rate-limit", "cache-ttl", "metrics"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "8090", cmd.Flags().Lookup("port").DefValue)
}
