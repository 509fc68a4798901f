package config

import "time"

// RateLimitConfig tunes the per-operator token bucket in front of the API.
type RateLimitConfig struct {
	Enabled        bool          `env:"ENABLED,default=true"`
	Capacity       int           `env:"CAPACITY,default=60"`
	RefillTokens   int           `env:"REFILL_TOKENS,default=1"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL,default=1s"`
	TTL            time.Duration `env:"TTL,default=10m"`
	KeyStrategy    string        `env:"KEY_STRATEGY,default=ip_user_route"`
	Prefix         string        `env:"PREFIX,default=rl"`
	Debug          bool          `env:"DEBUG,default=false"`
}

func (c RateLimitConfig) normalize() RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
