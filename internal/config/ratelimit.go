package config

import (
	"strings"
	"time"
)

// Bucket sizes one token bucket: Capacity tokens, topped up by
// RefillTokens every RefillInterval.
type Bucket struct {
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
}

// RateLimitConfig configures the Redis token buckets in front of the API.
// Requests whose matched route is listed in PaymentPaths draw from the
// Payment bucket; everything else draws from API.  The two never share
// tokens, so browsing parcels cannot starve checkout and vice versa.
type RateLimitConfig struct {
	Enabled      bool
	API          Bucket
	Payment      Bucket
	PaymentPaths map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	Debug        bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  Out-of-range values
// are clamped so the limiter can never be configured into rejecting
// everything.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		API: Bucket{
			Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
			RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
			RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		},
		Payment: Bucket{
			Capacity:       envInt("RATE_LIMIT_PAYMENT_CAPACITY", 10),
			RefillTokens:   envInt("RATE_LIMIT_PAYMENT_REFILL_TOKENS", 1),
			RefillInterval: envDur("RATE_LIMIT_PAYMENT_REFILL_INTERVAL", 6*time.Second),
		},
		PaymentPaths: parsePaths(envStr("RATE_LIMIT_PAYMENT_PATHS", "/create-checkout-session,/payment-success")),
		TTL:          envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:  envStr("RATE_LIMIT_KEY_STRATEGY", "ip"),
		Prefix:       envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:        envBool("RATE_LIMIT_DEBUG", false),
	}
	return cfg.normalized()
}

func parsePaths(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			m[p] = true
		}
	}
	return m
}

func (b Bucket) normalized() Bucket {
	if b.Capacity < 1 {
		b.Capacity = 1
	}
	if b.RefillTokens < 1 {
		b.RefillTokens = 1
	}
	if b.RefillInterval <= 0 {
		b.RefillInterval = time.Second
	}
	return b
}

// normalized clamps both buckets and keeps TTL long enough that a bucket
// is not evicted before it could have refilled.
func (c RateLimitConfig) normalized() RateLimitConfig {
	c.API = c.API.normalized()
	c.Payment = c.Payment.normalized()
	slowest := c.API.RefillInterval
	if c.Payment.RefillInterval > slowest {
		slowest = c.Payment.RefillInterval
	}
	if minTTL := 5 * slowest; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}
