package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultLRUSize = 1024

type lruEntry struct {
	value     []byte
	expiresAt time.Time
}

// LRUService is an in-process CacheService for single-instance deployments.
// Entries carry their own expiry and are dropped lazily on read.
type LRUService struct {
	mu    sync.Mutex
	cache *lru.Cache[string, lruEntry]
	now   func() time.Time
}

// NewLRUService creates a cache holding at most size entries.
func NewLRUService(size int) *LRUService {
	if size <= 0 {
		size = defaultLRUSize
	}
	c, err := lru.New[string, lruEntry](size)
	if err != nil {
		// Only a non-positive size fails, which is handled above.
		panic(err)
	}
	return &LRUService{cache: c, now: time.Now}
}

// Get returns the value for key, or ErrMiss when absent or expired.
func (l *LRUService) Get(key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.cache.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !e.expiresAt.IsZero() && !l.now().Before(e.expiresAt) {
		l.cache.Remove(key)
		return nil, ErrMiss
	}
	return e.value, nil
}

// Set stores value under key. A zero expiration never expires.
func (l *LRUService) Set(key string, value []byte, expiration time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := lruEntry{value: value}
	if expiration > 0 {
		e.expiresAt = l.now().Add(expiration)
	}
	l.cache.Add(key, e)
	return nil
}

// Delete removes key.
func (l *LRUService) Delete(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Remove(key)
	return nil
}
