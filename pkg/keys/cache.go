// pkg/keys/cache.go
package keys

import (
	"context"
	"fmt"
	"sync"
	"time"

	"realmgate/pkg/token"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realmgate_pubkey_cache_hits_total",
		Help: "Public key cache lookups served without a provider round trip.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realmgate_pubkey_cache_misses_total",
		Help: "Public key cache lookups that triggered a key fetch.",
	})
	fetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realmgate_pubkey_fetch_failures_total",
		Help: "Key fetches that ended in error.",
	})
)

// Fetcher resolves an issuer URL to PEM key material.
type Fetcher interface {
	FetchPublicKey(ctx context.Context, issuerURL string) (string, error)
}

type entry struct {
	pem       string
	fetchedAt time.Time
}

// Cache memoizes verification keys per issuer. One entry per issuer, no
// proactive expiry: a fetch happens only on miss, and a rotated realm key
// stays stale until Evict/Purge or restart. Concurrent cold lookups for the
// same issuer may each fetch; the last writer wins.
type Cache struct {
	mu      sync.RWMutex
	keys    map[string]entry
	fetcher Fetcher
}

// NewCache builds a cache around the given fetcher. Construct once at process
// start and pass by reference; there is no package-level instance.
func NewCache(f Fetcher) *Cache {
	return &Cache{keys: map[string]entry{}, fetcher: f}
}

// GetPublicKey decodes the token's claims without verifying them, and returns
// the cached key for its issuer, fetching on first sight.
func (c *Cache) GetPublicKey(ctx context.Context, rawToken string) (string, error) {
	claims, err := token.DecodeClaims(rawToken)
	if err != nil {
		return "", err
	}
	iss := claims.Issuer
	if iss == "" {
		return "", fmt.Errorf("%w: token carries no issuer", ErrKeyFetch)
	}

	c.mu.RLock()
	e, ok := c.keys[iss]
	c.mu.RUnlock()
	if ok {
		cacheHits.Inc()
		return e.pem, nil
	}

	cacheMisses.Inc()
	pem, err := c.fetcher.FetchPublicKey(ctx, iss)
	if err != nil {
		fetchFailures.Inc()
		return "", err
	}
	c.mu.Lock()
	c.keys[iss] = entry{pem: pem, fetchedAt: time.Now()}
	c.mu.Unlock()
	return pem, nil
}

// Evict drops one issuer's entry. Operator hook for key rotation.
func (c *Cache) Evict(issuer string) {
	c.mu.Lock()
	delete(c.keys, issuer)
	c.mu.Unlock()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.keys = map[string]entry{}
	c.mu.Unlock()
}

// Len reports how many issuers currently have a cached key.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}
