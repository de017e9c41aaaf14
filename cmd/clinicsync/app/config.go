package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/clinicsync/internal/server"
	"github.com/agentstation/clinicsync/pkg/constants"
	"github.com/agentstation/clinicsync/pkg/errors"
	"github.com/agentstation/clinicsync/pkg/reconnect"
)

// envPrefix namespaces every environment variable, e.g. CLINICSYNC_ADDRESS.
const envPrefix = "CLINICSYNC"

// Source names accepted by the source setting.
const (
	SourceWebSocket = "websocket"
	SourceScripted  = "scripted"
)

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Connection
	Address string
	Token   string
	Source  string
	Script  string
	Topics  []string

	// Reconnection policy
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Growth      string

	// HTTP surface
	Server server.Config

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags (handled by cobra)
//  2. Environment variables (CLINICSYNC_*)
//  3. .env files
//  4. Config file (~/.clinicsync.yaml or ./.clinicsync.yaml)
//  5. Defaults
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".clinicsync")
	}

	// A missing config file is fine; a broken one is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.WrapParse("yaml", v.ConfigFileUsed(), err)
		}
	}

	srv := server.DefaultConfig()
	srv.Host = v.GetString("server.host")
	srv.Port = v.GetInt("server.port")
	srv.PathPrefix = v.GetString("server.prefix")
	srv.APIKey = v.GetString("server.api_key")
	srv.AuthEnabled = v.GetBool("server.auth")
	srv.CORSEnabled = v.GetBool("server.cors")
	srv.CORSOrigins = stringList(v, "server.cors_origins")
	srv.RateLimit = v.GetInt("server.rate_limit")
	srv.TrustedProxies = stringList(v, "server.trusted_proxies")
	srv.MetricsEnabled = v.GetBool("server.metrics")

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		Address: v.GetString("address"),
		Token:   v.GetString("token"),
		Source:  strings.ToLower(v.GetString("source")),
		Script:  v.GetString("script"),
		Topics:  stringList(v, "topics"),

		MaxAttempts: v.GetInt("reconnect.max_attempts"),
		BaseDelay:   v.GetDuration("reconnect.base_delay"),
		MaxDelay:    v.GetDuration("reconnect.max_delay"),
		Growth:      v.GetString("reconnect.growth"),

		Server: srv,

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	srv := server.DefaultConfig()
	policy := reconnect.DefaultConfig()

	v.SetDefault("address", constants.DefaultAddress)
	v.SetDefault("source", SourceWebSocket)
	v.SetDefault("topics", []string{"queue", "beds", "alerts", "appointments", "stats"})

	v.SetDefault("reconnect.max_attempts", policy.MaxAttempts)
	v.SetDefault("reconnect.base_delay", policy.BaseDelay)
	v.SetDefault("reconnect.max_delay", policy.MaxDelay)
	v.SetDefault("reconnect.growth", "linear")

	v.SetDefault("server.host", srv.Host)
	v.SetDefault("server.port", srv.Port)
	v.SetDefault("server.prefix", srv.PathPrefix)
	v.SetDefault("server.rate_limit", srv.RateLimit)
	v.SetDefault("server.metrics", srv.MetricsEnabled)

	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// Reconnect builds the reconnection policy configuration.
func (c *Config) Reconnect() (reconnect.Config, error) {
	growth, err := reconnect.ParseGrowth(c.Growth)
	if err != nil {
		return reconnect.Config{}, errors.NewConfigError("reconnect", "growth", err)
	}
	cfg := reconnect.Config{
		MaxAttempts: c.MaxAttempts,
		BaseDelay:   c.BaseDelay,
		MaxDelay:    c.MaxDelay,
		Growth:      growth,
	}
	if err := cfg.Validate(); err != nil {
		return reconnect.Config{}, err
	}
	return cfg, nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		// godotenv.Load never overrides variables that are already set,
		// so the more specific file goes first.
		_ = godotenv.Load(envFile)
	}
}

// stringList reads a list that may also be given as one comma-separated
// string, the usual form in environment variables.
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
