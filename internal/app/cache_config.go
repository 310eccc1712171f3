package app

import (
	"strings"

	"github.com/charlesng35/courtnotify/internal/lock"
)

// RedisClientConfig converts the application cache configuration into the lock package representation.
func (c CacheConfig) RedisClientConfig() lock.RedisConfig {
	return lock.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}
