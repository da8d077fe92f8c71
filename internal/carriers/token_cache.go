package carriers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"shipment-orchestrator/internal/apperrors"
	"shipment-orchestrator/internal/telemetry"
)

const (
	// A token closer than this to expiry is treated as expired.
	TokenRefreshBuffer = time.Hour
	// Validity the aggregator grants a fresh token.
	TokenValidity = 240 * time.Hour
	// How long a cached token is used before the stored copy is checked
	// again, so a token cleared or replaced by another instance is noticed.
	StoredTokenRecheck = 5 * time.Minute

	loginTimeout = 30 * time.Second
)

// Credentials are the aggregator login credentials
type Credentials struct {
	Email    string
	Password string
}

// String omits the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Email: %s}", c.Email)
}

// TokenStore persists credentials and the shared token
type TokenStore interface {
	LoadCredentials(ctx context.Context) (Credentials, error)
	// LoadToken returns an empty token when none is stored
	LoadToken(ctx context.Context) (string, time.Time, error)
	SaveToken(ctx context.Context, token string, expiresAt time.Time) error
	// ClearToken removes the stored token if it is still token
	ClearToken(ctx context.Context, token string) error
}

// Authenticator exchanges credentials for a bearer token
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (string, error)
}

// TokenCache holds the current bearer token. Readers share the cached token;
// refreshes are collapsed so only one login is in flight at a time.
type TokenCache struct {
	mu        sync.RWMutex
	token     string
	expiry    time.Time
	checkedAt time.Time
	// set after the aggregator rejects a token, so the stored copy is skipped
	skipStored bool

	store   TokenStore
	auth    Authenticator
	group   singleflight.Group
	now     func() time.Time
	metrics *telemetry.Metrics
	logger  *logrus.Entry
}

// NewTokenCache creates a token cache backed by store
func NewTokenCache(store TokenStore, auth Authenticator, metrics *telemetry.Metrics, logger *logrus.Entry) *TokenCache {
	return &TokenCache{
		store:   store,
		auth:    auth,
		now:     time.Now,
		metrics: metrics,
		logger:  logger.WithField("component", "token-cache"),
	}
}

// GetValidToken returns a token valid for at least TokenRefreshBuffer
func (c *TokenCache) GetValidToken(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}
	return c.refresh(ctx, "refresh", false)
}

// Refresh forces a login, ignoring cached and stored tokens
func (c *TokenCache) Refresh(ctx context.Context) (string, error) {
	return c.refresh(ctx, "login", true)
}

// Invalidate drops the cached token. The next call logs in again.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiry = time.Time{}
	c.checkedAt = time.Time{}
	c.skipStored = true
}

// Reject drops a token the aggregator refused and clears the stored copy so
// other instances stop using it.
func (c *TokenCache) Reject(ctx context.Context, token string) {
	c.Invalidate()
	if err := c.store.ClearToken(ctx, token); err != nil {
		c.logger.WithError(err).Warn("Failed to clear rejected aggregator token")
	}
}

// Expiry returns the expiry of the cached token, zero if none
func (c *TokenCache) Expiry() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiry
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	if c.token != "" && c.expiry.Sub(now) >= TokenRefreshBuffer && now.Sub(c.checkedAt) < StoredTokenRecheck {
		return c.token, true
	}
	return "", false
}

// current returns the cached token regardless of when the store was last checked
func (c *TokenCache) current() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.expiry.Sub(c.now()) >= TokenRefreshBuffer {
		c.checkedAt = c.now()
		return c.token, true
	}
	return "", false
}

func (c *TokenCache) set(token string, expiry time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiry = expiry
	c.checkedAt = c.now()
	c.skipStored = false
}

func (c *TokenCache) shouldSkipStored() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.skipStored
}

func (c *TokenCache) refresh(ctx context.Context, key string, force bool) (string, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// The shared refresh must not die with the first caller's request.
		workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loginTimeout)
		defer cancel()
		return c.doRefresh(workCtx, force)
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

func (c *TokenCache) doRefresh(ctx context.Context, force bool) (string, error) {
	if !force {
		if token, ok := c.cached(); ok {
			return token, nil
		}
		if !c.shouldSkipStored() {
			token, expiry, err := c.store.LoadToken(ctx)
			switch {
			case err != nil:
				c.logger.WithError(err).Warn("Failed to load stored aggregator token")
				// keep using the token in hand while the store is unreachable
				if token, ok := c.current(); ok {
					return token, nil
				}
			case token != "" && expiry.Sub(c.now()) >= TokenRefreshBuffer:
				c.set(token, expiry)
				c.logger.WithField("expires_at", expiry).Debug("Reusing stored aggregator token")
				return token, nil
			}
			// A missing stored token means it was cleared after a credential
			// change or a rejection, so the cached one is not reused either.
		}
	}

	creds, err := c.store.LoadCredentials(ctx)
	if err != nil {
		return "", err
	}
	if creds.Email == "" || creds.Password == "" {
		return "", apperrors.NewConfigurationError("courier aggregator credentials are not configured")
	}

	token, err := c.auth.Login(ctx, creds)
	if err != nil {
		c.metrics.RecordTokenRefresh("error")
		c.logger.WithError(err).Warn("Aggregator login failed")
		return "", err
	}
	c.metrics.RecordTokenRefresh("ok")

	expiry := c.now().Add(TokenValidity)
	c.set(token, expiry)
	if err := c.store.SaveToken(ctx, token, expiry); err != nil {
		c.logger.WithError(err).Warn("Failed to persist aggregator token")
	}
	c.logger.WithField("expires_at", expiry).Info("Aggregator token refreshed")
	return token, nil
}
