package config

import (
	"os"
	"strings"
	"time"
)

// RateLimitConfig tunes the redis token-bucket limiter guarding the
// auth and kiosk endpoints.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the RATE_LIMIT_* environment variables and
// clamps unusable values to a working bucket.  RATE_LIMIT_BURST and
// RATE_LIMIT_REFILL_EVERY are shorthand overrides for the capacity and
// refill cadence.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envIntDefault("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envIntDefault("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDuration("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDuration("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    getenv("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         getenv("RATE_LIMIT_PREFIX", "labkeys:rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	if b := envIntDefault("RATE_LIMIT_BURST", 0); b > 0 {
		cfg.Capacity = b
	}
	if every := envDuration("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		cfg.RefillTokens = 1
		cfg.RefillInterval = every
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	// Bucket state must outlive several refill intervals or an idle
	// client's accumulated tokens expire out from under it.
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

// envBool reads an optional boolean variable; anything other than an
// explicit true/false token falls back to def.
func envBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
