package provider

import (
	"errors"
	"time"
)

// Config holds configuration for an outbound provider.
type Config struct {
	// Type identifies the provider: "httpapi", "smtp", or "stdout".
	Type string `mapstructure:"type"`

	// APIKey authenticates httpapi requests.
	APIKey string `mapstructure:"api_key"`

	// Endpoint is the API base URL for httpapi, or host:port for smtp.
	Endpoint string `mapstructure:"endpoint"`

	// Timeout is the maximum duration for a provider API call.
	Timeout time.Duration `mapstructure:"timeout"`

	// SMTP relay credentials. Empty username skips authentication.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

const defaultTimeout = 30 * time.Second

// Validate checks required fields based on provider type.
func (c *Config) Validate() error {
	if c.Type == "" {
		return errors.New("provider type is required")
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	switch c.Type {
	case "httpapi":
		if c.APIKey == "" {
			return errors.New("httpapi: api_key is required")
		}
		if c.Endpoint == "" {
			return errors.New("httpapi: endpoint is required")
		}
	case "smtp":
		if c.Endpoint == "" {
			return errors.New("smtp: endpoint (host:port) is required")
		}
	case "stdout":
		// No configuration required.
	default:
		return errors.New("unknown provider type: " + c.Type)
	}
	return nil
}

// New builds a Provider from the configuration.
func New(cfg Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "httpapi":
		return NewHTTPAPI(cfg, NewHTTPClient(cfg.Timeout)), nil
	case "smtp":
		return NewSMTPRelay(cfg), nil
	case "stdout":
		return NewStdout(), nil
	default:
		return nil, errors.New("unknown provider type: " + cfg.Type)
	}
}
