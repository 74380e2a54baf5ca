// Package config loads stellarwatch settings from defaults, an optional .env
// file, the environment and explicit overrides, in that order of precedence.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/stellar/go/keypair"
	"go.uber.org/zap"

	"github.com/marwen-abid/stellar-watch-sdk-go/errors"
	"github.com/marwen-abid/stellar-watch-sdk-go/logging"
)

// Configuration keys, read verbatim from the environment.
const (
	HORIZON_URL               = "HORIZON_URL"
	WATCH_ACCOUNT             = "WATCH_ACCOUNT"
	WATCH_ASSET               = "WATCH_ASSET"
	HOME_DOMAIN               = "HOME_DOMAIN"
	CURSOR_DB                 = "CURSOR_DB"
	LOG_LEVEL                 = "LOG_LEVEL"
	RECONNECT_INITIAL_BACKOFF = "RECONNECT_INITIAL_BACKOFF"
	RECONNECT_MAX_BACKOFF     = "RECONNECT_MAX_BACKOFF"
)

// DefaultHorizonURL is the public network Horizon endpoint.
const DefaultHorizonURL = "https://horizon.stellar.org"

// Config holds the resolved settings.
type Config struct {
	HorizonURL     string
	Account        string
	Asset          string
	HomeDomain     string
	CursorDB       string
	LogLevel       string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type loadOptions struct {
	envFile   string
	overrides map[string]any
	logger    *zap.Logger
}

// Option configures Load.
type Option func(*loadOptions)

// WithEnvFile sets the dotenv file to read (default ".env"). A missing file
// is not an error.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// WithOverrides applies values on top of every other source, e.g. CLI flags.
// Empty strings and zero durations are ignored.
func WithOverrides(values map[string]any) Option {
	return func(o *loadOptions) {
		for k, v := range values {
			switch x := v.(type) {
			case string:
				if x == "" {
					continue
				}
			case time.Duration:
				if x == 0 {
					continue
				}
				v = x.String()
			}
			o.overrides[k] = v
		}
	}
}

// WithLogger sets the logger used to report unreadable sources.
func WithLogger(logger *zap.Logger) Option {
	return func(o *loadOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Load resolves the configuration and validates it.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{
		envFile:   ".env",
		overrides: make(map[string]any),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	// Load default values
	if err := k.Load(confmap.Provider(map[string]any{
		HORIZON_URL:               DefaultHorizonURL,
		WATCH_ASSET:               "",
		HOME_DOMAIN:               "",
		CURSOR_DB:                 "",
		LOG_LEVEL:                 "info",
		RECONNECT_INITIAL_BACKOFF: "1s",
		RECONNECT_MAX_BACKOFF:     "60s",
	}, "."), nil); err != nil {
		return nil, errors.NewConfigError(errors.CONFIG_INVALID, "failed to load defaults", err)
	}

	// .env file is optional, but we still try to load it if it exists.
	if o.envFile != "" {
		if err := k.Load(file.Provider(o.envFile), dotenv.Parser()); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			o.logger.Warn("failed to load .env file", zap.String("path", o.envFile), zap.Error(err))
		}
	}

	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		o.logger.Warn("failed to load environment variables", zap.Error(err))
	}

	if len(o.overrides) > 0 {
		if err := k.Load(confmap.Provider(o.overrides, "."), nil); err != nil {
			return nil, errors.NewConfigError(errors.CONFIG_INVALID, "failed to apply overrides", err)
		}
	}

	cfg := &Config{
		HorizonURL:     k.String(HORIZON_URL),
		Account:        k.String(WATCH_ACCOUNT),
		Asset:          k.String(WATCH_ASSET),
		HomeDomain:     k.String(HOME_DOMAIN),
		CursorDB:       k.String(CURSOR_DB),
		LogLevel:       k.String(LOG_LEVEL),
		InitialBackoff: k.Duration(RECONNECT_INITIAL_BACKOFF),
		MaxBackoff:     k.Duration(RECONNECT_MAX_BACKOFF),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field. An empty Account is allowed; callers that
// need one use RequireAccount.
func (c *Config) Validate() error {
	u, err := url.Parse(c.HorizonURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid(HORIZON_URL, fmt.Sprintf("%q is not an http(s) URL", c.HorizonURL), err)
	}
	if c.Account != "" {
		if _, err := keypair.ParseAddress(c.Account); err != nil {
			return invalid(WATCH_ACCOUNT, fmt.Sprintf("%q is not a Stellar account", c.Account), err)
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid(LOG_LEVEL, err.Error(), err)
	}
	if c.InitialBackoff <= 0 {
		return invalid(RECONNECT_INITIAL_BACKOFF, "must be a positive duration", nil)
	}
	if c.MaxBackoff < c.InitialBackoff {
		return invalid(RECONNECT_MAX_BACKOFF, "must not be shorter than the initial backoff", nil)
	}
	return nil
}

// RequireAccount returns CONFIG_INVALID when no account is configured.
func (c *Config) RequireAccount() error {
	if c.Account == "" {
		return invalid(WATCH_ACCOUNT, "an account to watch is required", nil)
	}
	return nil
}

func invalid(key, msg string, cause error) error {
	return errors.NewConfigError(errors.CONFIG_INVALID, key+": "+msg, cause).With("key", key)
}
