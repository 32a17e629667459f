package token

import (
	"sync"
	"time"
)

// RevokedTokenCache remembers access tokens signed out before they expire.
type RevokedTokenCache interface {
	Add(jti string, exp time.Time) error
	IsRevoked(jti string) bool
	Cleanup()
}

type InMemoryRevokedTokenCache struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
	now     func() time.Time
}

func NewInMemoryRevokedTokenCache() *InMemoryRevokedTokenCache {
	return &InMemoryRevokedTokenCache{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Add records jti until exp. Expired entries are swept on every call.
func (c *InMemoryRevokedTokenCache) Add(jti string, exp time.Time) error {
	c.Cleanup()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

func (c *InMemoryRevokedTokenCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}

func (c *InMemoryRevokedTokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.revoked)
}
