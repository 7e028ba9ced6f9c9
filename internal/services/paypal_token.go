package services

import (
	"context"
	"sync"
	"time"
)

const defaultTokenMargin = 60 * time.Second

// TokenFetcher performs the provider's credential exchange.
type TokenFetcher interface {
	FetchAccessToken(ctx context.Context) (AccessToken, error)
}

// TokenCache keeps the provider bearer token in process memory and refreshes it
// when it is about to expire. Nothing is persisted; a restart forces a new exchange.
type TokenCache struct {
	fetcher TokenFetcher
	margin  time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	token  string
	expiry time.Time
}

// NewTokenCache wraps fetcher. The stored expiry is the provider lifetime minus margin.
func NewTokenCache(fetcher TokenFetcher, margin time.Duration) *TokenCache {
	if margin < 0 {
		margin = defaultTokenMargin
	}
	return &TokenCache{
		fetcher: fetcher,
		margin:  margin,
		now:     time.Now,
	}
}

// Token returns a valid bearer token, exchanging credentials when the cached one
// is missing or expired. A failed exchange caches nothing.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if token := c.currentLocked(); token != "" {
		return token, nil
	}

	fetched, err := c.fetcher.FetchAccessToken(ctx)
	if err != nil {
		return "", err
	}

	c.token = fetched.Value
	c.expiry = c.now().Add(fetched.ExpiresIn - c.margin)
	return c.token, nil
}

// Invalidate drops the cached token so the next call performs an exchange.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiry = time.Time{}
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	token := c.currentLocked()
	return token, token != ""
}

func (c *TokenCache) currentLocked() string {
	if c.token == "" {
		return ""
	}
	if !c.now().Before(c.expiry) {
		return ""
	}
	return c.token
}
