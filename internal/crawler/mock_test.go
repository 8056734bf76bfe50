package crawler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sjsage522/dealscout/services/cache"
)

var _ cache.CacheService = (*MockCacheService)(nil)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

var _ Renderer = (*mockRenderer)(nil)

// mockRenderer serves canned HTML and records peak concurrency.
type mockRenderer struct {
	name  string
	delay time.Duration
	fail  map[string]bool

	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (m *mockRenderer) Name() string { return m.name }

func (m *mockRenderer) Render(ctx context.Context, url string) (string, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if m.fail[url] {
		return "", fmt.Errorf("%s: render failed for %s", m.name, url)
	}
	return fmt.Sprintf("<html><body><h1>%s</h1><p>rendered by %s with enough padding</p></body></html>", url, m.name), nil
}

var _ Searcher = (*mockSearcher)(nil)

// mockSearcher returns scripted pages keyed by start offset.
type mockSearcher struct {
	pages   map[int][]SearchItem
	errs    map[int]error
	queries []string
	starts  []int
}

func (m *mockSearcher) Search(ctx context.Context, query string, start int) ([]SearchItem, error) {
	m.queries = append(m.queries, query)
	m.starts = append(m.starts, start)
	if err, ok := m.errs[start]; ok {
		return nil, err
	}
	return m.pages[start], nil
}
