// Package config loads the server configuration from the environment.
//
// The loading sequence is:
//  1. Load .env files via godotenv (non-fatal if absent).
//  2. Populate Config from envconfig struct tags.
//  3. Validate the result with go-playground/validator.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/miyamo2/weathermcp/infrastructure/api"
)

// redacted replaces secret values in logs and serialized config.
const redacted = "***REDACTED***"

// Secret is a string that is never printed or serialized in plain text.
type Secret string

func (s Secret) String() string {
	return redacted
}

func (s Secret) GoString() string {
	return redacted
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// Unmask returns the plain text value.
func (s Secret) Unmask() string {
	return string(s)
}

// Config is the process configuration.
type Config struct {
	OpenWeather OpenWeather
	Server      Server
	LogLevel    slog.Level `envconfig:"LOG_LEVEL" default:"info"`
}

// OpenWeather configures the upstream weather provider.
type OpenWeather struct {
	APIKey          Secret        `envconfig:"OPENWEATHER_API_KEY" validate:"required"`
	BaseURL         string        `envconfig:"OPENWEATHER_BASE_URL" default:"http://api.openweathermap.org/data/2.5" validate:"url"`
	Units           string        `envconfig:"OPENWEATHER_UNITS" default:"metric" validate:"oneof=metric imperial standard"`
	Timeout         time.Duration `envconfig:"OPENWEATHER_TIMEOUT" default:"10s" validate:"gt=0"`
	RatePerMinute   int           `envconfig:"OPENWEATHER_RATE_PER_MINUTE" default:"60" validate:"gte=0"`
	BreakerFailures uint32        `envconfig:"OPENWEATHER_BREAKER_FAILURES" default:"5" validate:"gt=0"`
}

// API returns the client configuration for the provider.
func (o OpenWeather) API() api.Config {
	return api.Config{
		BaseURL:         o.BaseURL,
		APIKey:          o.APIKey.Unmask(),
		Units:           o.Units,
		Timeout:         o.Timeout,
		RatePerMinute:   o.RatePerMinute,
		BreakerFailures: o.BreakerFailures,
	}
}

// Server configures the MCP server and its transports.
type Server struct {
	Name      string        `envconfig:"MCP_SERVER_NAME" default:"weather-server" validate:"required"`
	Version   string        `envconfig:"MCP_SERVER_VERSION" default:"0.1.0" validate:"required"`
	SSEAddr   string        `envconfig:"MCP_SSE_ADDR" default:":3001" validate:"required"`
	KeepAlive time.Duration `envconfig:"MCP_SSE_KEEPALIVE" default:"15s" validate:"gt=0"`
}

var (
	// ErrParsing occurs when an environment variable cannot be decoded into its field.
	ErrParsing = errors.New("failed to process environment configuration")
	// ErrValidation occurs when the decoded configuration is invalid.
	ErrValidation = errors.New("configuration validation failed")
)

// Load reads the given .env files, or .env when none is given, then the environment.
//
// Variables already set in the environment take precedence over .env files.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsing, err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return &cfg, nil
}
