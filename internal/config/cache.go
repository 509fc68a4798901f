package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching is
// disabled. TTL bounds how stale a cached list may get; every successful
// mutation also drops the center's entries explicitly. KeyStrategy
// determines which parts of the request contribute to the cache key.
type CacheConfig struct {
	Enabled      bool          `env:"ENABLED,default=true"`
	Methods      string        `env:"METHODS,default=GET"`
	TTL          time.Duration `env:"TTL,default=30s"`
	KeyStrategy  string        `env:"KEY_STRATEGY,default=route_query"`
	Prefix       string        `env:"PREFIX,default=cache"`
	MaxBodyBytes int           `env:"MAX_BODY_BYTES,default=1048576"`
}

// MethodSet returns the upper-cased cacheable methods.
func (c CacheConfig) MethodSet() map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(c.Methods, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
