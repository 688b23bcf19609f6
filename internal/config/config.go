package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LTIOptions holds the tool's LTI 1.3 registration. LTI is optional: the
// endpoints are only mounted when a client ID is configured.
type LTIOptions struct {
	ClientID       string `env:"LTI_CLIENT_ID"`
	DeploymentID   string `env:"LTI_DEPLOYMENT_ID"`
	PlatformIssuer string `env:"LTI_PLATFORM_ISSUER" envDefault:"https://canvas.instructure.com"`
	AuthLoginURL   string `env:"LTI_AUTH_LOGIN_URL"`
	KeySetURL      string `env:"LTI_KEY_SET_URL"`
	PrivateKeyPath string `env:"LTI_PRIVATE_KEY_PATH" envDefault:"lti_private.key"`
}

// Enabled reports whether the tool has an LTI registration to serve.
func (o LTIOptions) Enabled() bool { return o.ClientID != "" }

// Config is the process configuration, read from the environment with
// optional .env file support.
type Config struct {
	Port         int    `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"testbench.db"`
	BaseURL      string `env:"TOOL_BASE_URL" envDefault:"http://localhost:8080"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	// CanvasToken authenticates every provider call, in all environments.
	CanvasToken string `env:"CANVAS_API_TOKEN"`

	// Environments maps environment names to Canvas base URLs, e.g.
	// "development=https://dev.canvas.example.edu,test=https://test.canvas.example.edu".
	Environments map[string]string `env:"TEST_ENVIRONMENTS" envKeyValSeparator:"="`

	// RootAccountID is the account courses fall back to when no sub-account
	// is available.
	RootAccountID int64 `env:"ROOT_ACCOUNT_ID" envDefault:"1"`

	// AdminUsername/AdminPassword protect the API with basic auth.
	// Leaving them empty disables authentication.
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	LTI LTIOptions
}

// Load reads configuration from the given .env files (missing files are
// skipped) and the process environment, then validates it.
func Load(envFiles ...string) (*Config, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return nil, fmt.Errorf("loading env files: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CanvasToken == "" {
		return fmt.Errorf("CANVAS_API_TOKEN is required")
	}
	if len(c.Environments) == 0 {
		return fmt.Errorf("TEST_ENVIRONMENTS must name at least one environment")
	}
	for name, url := range c.Environments {
		if url == "" {
			return fmt.Errorf("environment %q has no base URL", name)
		}
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Credentials returns the basic auth credential map for the API,
// empty when authentication is disabled.
func (c *Config) Credentials() map[string]string {
	if c.AdminUsername == "" {
		return nil
	}
	return map[string]string{c.AdminUsername: c.AdminPassword}
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
