package cache

import (
	"errors"
	"time"

	"sjsage522/dealscout/config"
	"sjsage522/dealscout/logger"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// CacheService stores short-lived markers such as rate-limit blocks.
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// NewFromConfig returns a memcache-backed service when MemcacheAddr is set
// and an in-process LRU otherwise.
func NewFromConfig(cfg *config.Config) CacheService {
	log := logger.ForComponent("cache")
	if cfg.MemcacheAddr != "" {
		log.Info().Str("addr", cfg.MemcacheAddr).Msg("Using memcache")
		return NewMemcacheService(cfg.MemcacheAddr)
	}
	log.Info().Int("size", cfg.CacheSize).Msg("Using in-process LRU cache")
	return NewLRUService(cfg.CacheSize)
}
