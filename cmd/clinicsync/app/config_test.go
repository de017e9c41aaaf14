package app

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/agentstation/clinicsync/pkg/constants"
)

// isolate points the home directory at an empty temp dir so no user config
// leaks into the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

// TestLoadConfig verifies the defaults.
func TestLoadConfig(t *testing.T) {
	isolate(t)

	config, err := loadConfig(viper.New())
	if err != nil {
		t.Fatalf("loadConfig() failed: %v", err)
	}

	if config.Address != constants.DefaultAddress {
		t.Errorf("Address = %q, want %q", config.Address, constants.DefaultAddress)
	}
	if config.Source != SourceWebSocket {
		t.Errorf("Source = %q, want %q", config.Source, SourceWebSocket)
	}
	if len(config.Topics) != 5 {
		t.Errorf("Topics = %v, want the five dashboard channels", config.Topics)
	}
	if config.MaxAttempts != constants.DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", config.MaxAttempts, constants.DefaultMaxAttempts)
	}
	if config.BaseDelay != constants.DefaultBaseDelay {
		t.Errorf("BaseDelay = %v, want %v", config.BaseDelay, constants.DefaultBaseDelay)
	}
	if config.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want 8090", config.Server.Port)
	}
	if config.LogFormat == "" {
		t.Error("LogFormat not set to default")
	}
}

// TestConfig_EnvironmentVariables verifies CLINICSYNC_* loading.
func TestConfig_EnvironmentVariables(t *testing.T) {
	isolate(t)
	t.Setenv("CLINICSYNC_ADDRESS", "wss://clinic.example/ws")
	t.Setenv("CLINICSYNC_SOURCE", "Scripted")
	t.Setenv("CLINICSYNC_TOPICS", "queue,alerts")
	t.Setenv("CLINICSYNC_RECONNECT_MAX_ATTEMPTS", "3")
	t.Setenv("CLINICSYNC_RECONNECT_BASE_DELAY", "250ms")
	t.Setenv("CLINICSYNC_RECONNECT_GROWTH", "exponential")
	t.Setenv("CLINICSYNC_SERVER_PORT", "9100")
	t.Setenv("CLINICSYNC_SERVER_API_KEY", "secret")
	t.Setenv("CLINICSYNC_SERVER_TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")
	t.Setenv("CLINICSYNC_FORMAT", "json")

	config, err := loadConfig(viper.New())
	if err != nil {
		t.Fatalf("loadConfig() failed: %v", err)
	}

	if config.Address != "wss://clinic.example/ws" {
		t.Errorf("Address = %q", config.Address)
	}
	if config.Source != SourceScripted {
		t.Errorf("Source = %q, want %q", config.Source, SourceScripted)
	}
	if len(config.Topics) != 2 || config.Topics[0] != "queue" || config.Topics[1] != "alerts" {
		t.Errorf("Topics = %v, want [queue alerts]", config.Topics)
	}
	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.BaseDelay != 250*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 250ms", config.BaseDelay)
	}
	if config.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", config.Server.Port)
	}
	if config.Server.APIKey != "secret" {
		t.Errorf("Server.APIKey = %q, want secret", config.Server.APIKey)
	}
	if want := []string{"10.0.0.0/8", "127.0.0.1"}; !slices.Equal(config.Server.TrustedProxies, want) {
		t.Errorf("Server.TrustedProxies = %v, want %v", config.Server.TrustedProxies, want)
	}
	if config.Format != "json" {
		t.Errorf("Format = %q, want json", config.Format)
	}

	policy, err := config.Reconnect()
	if err != nil {
		t.Fatalf("Reconnect() failed: %v", err)
	}
	if got := policy.Delay(3); got != time.Second {
		t.Errorf("exponential Delay(3) = %v, want 1s", got)
	}
}

// TestConfig_File verifies reading an explicit YAML config file.
func TestConfig_File(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "clinicsync.yaml")
	content := `address: ws://ward-7.local/ws
topics: [beds]
reconnect:
  max_attempts: 0
  max_delay: 5s
server:
  port: 9200
  auth: true
  api_key: k1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLINICSYNC_CONFIG", path)

	config, err := loadConfig(viper.New())
	if err != nil {
		t.Fatalf("loadConfig() failed: %v", err)
	}

	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", config.ConfigFile, path)
	}
	if config.Address != "ws://ward-7.local/ws" {
		t.Errorf("Address = %q", config.Address)
	}
	if len(config.Topics) != 1 || config.Topics[0] != "beds" {
		t.Errorf("Topics = %v, want [beds]", config.Topics)
	}
	if config.MaxAttempts != 0 {
		t.Errorf("MaxAttempts = %d, want 0", config.MaxAttempts)
	}
	if config.MaxDelay != 5*time.Second {
		t.Errorf("MaxDelay = %v, want 5s", config.MaxDelay)
	}
	if !config.Server.AuthEnabled || config.Server.APIKey != "k1" || config.Server.Port != 9200 {
		t.Errorf("Server = %+v", config.Server)
	}
}

// TestConfig_BrokenFile verifies that a malformed config file is reported.
func TestConfig_BrokenFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("address: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLINICSYNC_CONFIG", path)

	if _, err := loadConfig(viper.New()); err == nil {
		t.Error("loadConfig() succeeded on a malformed file")
	}
}

// TestConfig_Reconnect verifies policy validation.
func TestConfig_Reconnect(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"defaults", Config{MaxAttempts: 10, BaseDelay: time.Second, Growth: "linear"}, false},
		{"empty growth is linear", Config{MaxAttempts: 1, BaseDelay: time.Second}, false},
		{"unknown growth", Config{MaxAttempts: 1, BaseDelay: time.Second, Growth: "fibonacci"}, true},
		{"zero base delay", Config{MaxAttempts: 1}, true},
		{"negative attempts", Config{MaxAttempts: -1, BaseDelay: time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.config.Reconnect()
			if (err != nil) != tt.wantErr {
				t.Errorf("Reconnect() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestConfig_ReconnectLinearIgnoresMaxDelay verifies that the default
// max_delay does not flatten linear backoff.
func TestConfig_ReconnectLinearIgnoresMaxDelay(t *testing.T) {
	config := Config{MaxAttempts: 10, BaseDelay: 5 * time.Second, MaxDelay: constants.DefaultMaxDelay, Growth: "linear"}
	policy, err := config.Reconnect()
	if err != nil {
		t.Fatalf("Reconnect() failed: %v", err)
	}
	if got := policy.Delay(10); got != 50*time.Second {
		t.Errorf("Delay(10) = %v, want 50s", got)
	}

	config.Growth = "exponential"
	if policy, err = config.Reconnect(); err != nil {
		t.Fatalf("Reconnect() failed: %v", err)
	}
	if got := policy.Delay(10); got != constants.DefaultMaxDelay {
		t.Errorf("exponential Delay(10) = %v, want %v", got, constants.DefaultMaxDelay)
	}
}

// TestConfig_UpdateFromFlags verifies flag precedence.
func TestConfig_UpdateFromFlags(t *testing.T) {
	config := &Config{Format: "yaml", LogLevel: "warn"}

	config.UpdateFromFlags(true, false, true, "", "")
	if !config.Verbose || !config.NoColor {
		t.Error("boolean flags not applied")
	}
	if config.Format != "yaml" || config.LogLevel != "warn" {
		t.Error("empty flags overrode configured values")
	}

	config.UpdateFromFlags(false, false, false, "json", "debug")
	if config.Format != "json" || config.LogLevel != "debug" {
		t.Errorf("Format = %q, LogLevel = %q", config.Format, config.LogLevel)
	}
}
