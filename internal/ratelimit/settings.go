package ratelimit

import (
	"strings"
	"time"

	internalsettings "github.com/walletbot/ingress/internal/settings"
)

// SettingsConfig captures the rate state backend settings.
type SettingsConfig struct {
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	// StateTTL expires idle Redis state; zero keeps it forever.
	StateTTL time.Duration
}

// Normalize trims values and applies defaults.
func (c SettingsConfig) Normalize() SettingsConfig {
	c.RedisAddr = strings.TrimSpace(c.RedisAddr)
	c.RedisPassword = strings.TrimSpace(c.RedisPassword)
	c.RedisPrefix = strings.TrimSpace(c.RedisPrefix)
	if c.RedisPrefix == "" {
		c.RedisPrefix = internalsettings.DefaultRedisPrefix
	}
	if c.RedisDB < 0 {
		c.RedisDB = 0
	}
	if c.StateTTL < 0 {
		c.StateTTL = 0
	}
	return c
}
