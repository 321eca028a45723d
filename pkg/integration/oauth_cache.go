package integration

import (
	"sync"
	"sync/atomic"
	"time"
)

// cachedToken is one scoped OAuth2 bearer token with its expiry.
type cachedToken struct {
	token     string
	expiresAt time.Time
}

// OAuthCache holds per-(integration, scope) bearer tokens with lock-free
// reads via atomic.Pointer and a mutex-guarded refresh path. Scoped per
// integration instance rather than module-level, per spec.md §9 Open
// Question resolution: "A port should scope it per integration instance to
// avoid cross-integration bleed."
type OAuthCache struct {
	entries sync.Map // key: integrationID+"|"+scope -> *atomic.Pointer[cachedToken]
	refresh sync.Mutex
}

// NewOAuthCache constructs an empty cache.
func NewOAuthCache() *OAuthCache {
	return &OAuthCache{}
}

func cacheKey(integrationID, scope string) string {
	return integrationID + "|" + scope
}

// Get returns a still-valid cached token, or ok=false if absent or expired.
func (c *OAuthCache) Get(integrationID, scope string) (string, bool) {
	v, ok := c.entries.Load(cacheKey(integrationID, scope))
	if !ok {
		return "", false
	}
	ptr := v.(*atomic.Pointer[cachedToken])
	tok := ptr.Load()
	if tok == nil || time.Now().After(tok.expiresAt) {
		return "", false
	}
	return tok.token, true
}

// Refresher fetches a fresh token for (integrationID, scope).
type Refresher func() (token string, ttl time.Duration, err error)

// GetOrRefresh returns a cached token if valid, otherwise calls refresh
// under a lock to collapse concurrent refreshes for the same key into one
// network call.
func (c *OAuthCache) GetOrRefresh(integrationID, scope string, refresh Refresher) (string, error) {
	if tok, ok := c.Get(integrationID, scope); ok {
		return tok, nil
	}

	c.refresh.Lock()
	defer c.refresh.Unlock()

	// Re-check: another goroutine may have refreshed while we waited for the lock.
	if tok, ok := c.Get(integrationID, scope); ok {
		return tok, nil
	}

	token, ttl, err := refresh()
	if err != nil {
		return "", err
	}

	key := cacheKey(integrationID, scope)
	ptr := &atomic.Pointer[cachedToken]{}
	ptr.Store(&cachedToken{token: token, expiresAt: time.Now().Add(ttl)})
	c.entries.Store(key, ptr)
	return token, nil
}
