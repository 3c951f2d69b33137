package pluggy

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"finsync/internal/shared/clock"
)

const (
	// tokenRefreshMargin is how long before expiry a cached token stops being used.
	tokenRefreshMargin = 5 * time.Minute
	// defaultTokenLifetime applies when the auth response has no expiresIn.
	defaultTokenLifetime = 2 * time.Hour
	// authTimeout bounds the shared refresh, which outlives any single caller.
	authTimeout = 30 * time.Second
)

// Authenticator exchanges client credentials for a token.
type Authenticator interface {
	Authenticate(ctx context.Context) (*Token, error)
}

// CredentialCache hands out the aggregator API key, refreshing it shortly
// before it expires. Concurrent refreshes are collapsed into one auth call.
type CredentialCache struct {
	auth  Authenticator
	clock clock.Clock

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// NewCredentialCache creates a cache backed by auth. A nil clock means the wall clock.
func NewCredentialCache(auth Authenticator, clk clock.Clock) *CredentialCache {
	if clk == nil {
		clk = clock.Real{}
	}
	return &CredentialCache{auth: auth, clock: clk}
}

// Token returns a valid API key, authenticating when the cached one is
// missing or within five minutes of expiry.
func (c *CredentialCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	ch := c.group.DoChan("token", func() (any, error) {
		// Another caller may have refreshed while we waited.
		if token, ok := c.cached(); ok {
			return token, nil
		}

		authCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), authTimeout)
		defer cancel()

		tok, err := c.auth.Authenticate(authCtx)
		if err != nil {
			return "", err
		}

		lifetime := time.Duration(tok.ExpiresIn) * time.Second
		if lifetime <= 0 {
			lifetime = defaultTokenLifetime
		}

		c.mu.Lock()
		c.token = tok.APIKey
		c.expiresAt = c.clock.Now().Add(lifetime)
		c.mu.Unlock()

		return tok.APIKey, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Set seeds the cache with a token expiring at expiresAt.
func (c *CredentialCache) Set(token string, expiresAt time.Time) {
	c.mu.Lock()
	c.token = token
	c.expiresAt = expiresAt
	c.mu.Unlock()
}

// Invalidate drops the cached token so the next call re-authenticates.
func (c *CredentialCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// ExpiresAt returns the expiry of the cached token, zero when there is none.
func (c *CredentialCache) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiresAt
}

func (c *CredentialCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return "", false
	}
	if !c.clock.Now().Add(tokenRefreshMargin).Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}
