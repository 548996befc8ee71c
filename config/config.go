package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"3002"`

	BrokerURL     string `env:"BROKER_URL" envDefault:"redis://localhost:6379"`
	EventsChannel string `env:"EVENTS_CHANNEL" envDefault:"events"`

	JWTSecret      string   `env:"JWT_SECRET,required,notEmpty"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,required,notEmpty" envSeparator:","`
	AppEnv         string   `env:"APP_ENV" envDefault:"production"`
	AllowDevAuth   bool     `env:"ALLOW_DEV_AUTH" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	SendBuffer int `env:"SEND_BUFFER" envDefault:"256"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	for i, origin := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(origin)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if len(c.AllowedOrigins) == 0 || c.AllowedOrigins[0] == "" {
		errs = append(errs, errors.New("ALLOWED_ORIGINS must list at least one origin"))
	}
	if c.BrokerURL == "" {
		errs = append(errs, errors.New("BROKER_URL must not be empty"))
	}
	if c.EventsChannel == "" {
		errs = append(errs, errors.New("EVENTS_CHANNEL must not be empty"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DevAuthEnabled reports whether dev_ tokens are accepted.
func (c Config) DevAuthEnabled() bool {
	return c.AppEnv == "development" || c.AllowDevAuth
}

// OriginAllowed reports whether a websocket upgrade from origin is accepted.
// Requests without an Origin header come from non-browser clients and pass.
func (c Config) OriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
