package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
)

const (
	minKeyTTL           = time.Minute
	minForcedRefresh    = 30 * time.Second
	maxJWKSBody         = 1 << 20
	defaultFetchTimeout = 5 * time.Second
)

// KeyCache holds the identity provider's signing keys. Keys live for a TTL
// and can be refetched early when a token names an unknown key, at most
// once per minForcedRefresh.
type KeyCache struct {
	url    string
	client *http.Client
	ttl    time.Duration
	now    func() time.Time

	mu         sync.Mutex
	keys       keyfunc.Keyfunc
	fetchedAt  time.Time
	lastForced time.Time
	lastFailed time.Time
}

func NewKeyCache(url string, ttl, timeout time.Duration) *KeyCache {
	if ttl < minKeyTTL {
		ttl = minKeyTTL
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &KeyCache{
		url:    url,
		client: &http.Client{Timeout: timeout},
		ttl:    ttl,
		now:    time.Now,
	}
}

// Keyfunc returns the current key set, fetching it when missing or stale.
func (c *KeyCache) Keyfunc(ctx context.Context) (keyfunc.Keyfunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.keys != nil && now.Sub(c.fetchedAt) < c.ttl {
		return c.keys, nil
	}
	// While the provider is failing, stale keys are served without a
	// fetch until minForcedRefresh has passed since the last attempt.
	if c.keys != nil && !c.lastFailed.IsZero() && now.Sub(c.lastFailed) < minForcedRefresh {
		return c.keys, nil
	}
	if err := c.fetchLocked(ctx); err != nil {
		c.lastFailed = now
		if c.keys != nil {
			return c.keys, nil
		}
		return nil, err
	}
	c.lastFailed = time.Time{}
	return c.keys, nil
}

// Refresh refetches the key set ahead of its TTL. It reports false when
// the refresh was skipped by the rate limit.
func (c *KeyCache) Refresh(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastForced.IsZero() && now.Sub(c.lastForced) < minForcedRefresh {
		return false, nil
	}
	c.lastForced = now
	return true, c.fetchLocked(ctx)
}

func (c *KeyCache) fetchLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBody))
	if err != nil {
		return fmt.Errorf("read jwks: %w", err)
	}
	if !json.Valid(raw) {
		return errors.New("jwks response is not valid JSON")
	}

	keys, err := keyfunc.NewJWKSetJSON(raw)
	if err != nil {
		return fmt.Errorf("parse jwks: %w", err)
	}
	c.keys = keys
	c.fetchedAt = c.now()
	return nil
}
