package ratelimit

import (
	"context"
	"time"
)

// Request categories used by the alert API.
const (
	CategoryRead    = "alerts_read"
	CategoryWrite   = "alerts_write"
	CategoryChecks  = "alerts_checks"
	CategoryDefault = "default"
)

// Limiter decides whether a client may issue one more request in a category.
// When denied it reports how long until the window resets.
type Limiter interface {
	Allow(ctx context.Context, clientID, category string) (bool, time.Duration, error)
}

// Limit allows Requests per Window.
type Limit struct {
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

type Config struct {
	Limits    map[string]Limit `json:"limits"`
	KeyPrefix string           `json:"keyPrefix"`
	Enabled   bool             `json:"enabled"`
}

func DefaultConfig() *Config {
	return &Config{
		Limits: map[string]Limit{
			CategoryRead:  {Requests: 200, Window: time.Minute},
			CategoryWrite: {Requests: 60, Window: time.Minute},
			// each manual check runs a full reconciliation pass
			CategoryChecks:  {Requests: 6, Window: time.Minute},
			CategoryDefault: {Requests: 120, Window: time.Minute},
		},
		KeyPrefix: "fleet:ratelimit:",
		Enabled:   true,
	}
}

// LimitFor returns the limit of category, falling back to the default one.
func (c *Config) LimitFor(category string) Limit {
	if limit, ok := c.Limits[category]; ok {
		return limit
	}
	if limit, ok := c.Limits[CategoryDefault]; ok {
		return limit
	}
	return Limit{Requests: 60, Window: time.Minute}
}
