package secrets

import "sync"

// cacheKey identifies a cached session token. Tokens are scoped to a
// machine identity at a specific endpoint; two targets sharing both reuse
// the same session.
type cacheKey struct {
	clientID string
	siteURL  string
}

// TokenCache holds session tokens for the lifetime of the process. Safe
// for concurrent use; no eviction.
type TokenCache struct {
	mu     sync.RWMutex
	tokens map[cacheKey]string
}

// NewTokenCache creates an empty token cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{tokens: make(map[cacheKey]string)}
}

// Get returns the cached token for (clientID, siteURL), if any.
func (c *TokenCache) Get(clientID, siteURL string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tok, ok := c.tokens[cacheKey{clientID, siteURL}]
	return tok, ok
}

// Put stores a token for (clientID, siteURL).
func (c *TokenCache) Put(clientID, siteURL, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[cacheKey{clientID, siteURL}] = token
}
