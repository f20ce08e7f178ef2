// Package auth authenticates API tokens against the system secret.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"imagevault/internal/secrets"
	"imagevault/pkg/logger"
)

var ErrNoSecret = errors.New("system api token not configured")

// CredentialCache resolves the system secret once and keeps it for the life
// of the process. Concurrent first fetches are collapsed into one call to the
// secret store. A failed fetch is not cached, so the next request retries.
type CredentialCache struct {
	source   secrets.Store
	name     string
	fallback string

	value atomic.Pointer[string]
	group singleflight.Group
}

// NewCredentialCache reads secret name from source. fallback is used when
// the fetch fails. A nil source means only fallback is consulted.
func NewCredentialCache(source secrets.Store, name, fallback string) *CredentialCache {
	return &CredentialCache{source: source, name: name, fallback: fallback}
}

func (c *CredentialCache) Secret(ctx context.Context) (string, error) {
	if v := c.value.Load(); v != nil {
		return *v, nil
	}
	if c.source == nil {
		return c.useFallback()
	}

	v, err, _ := c.group.Do(c.name, func() (any, error) {
		if v := c.value.Load(); v != nil {
			return *v, nil
		}
		raw, err := c.source.GetSecret(ctx, c.name)
		if err != nil {
			return "", err
		}
		token := extractToken(raw)
		if token == "" {
			return "", ErrNoSecret
		}
		c.value.CompareAndSwap(nil, &token)
		logger.LogInfo("Retrieved API token from secret store")
		return *c.value.Load(), nil
	})
	if err != nil {
		logger.LogError("Failed to fetch API token %q: %v", c.name, err)
		return c.useFallback()
	}
	return v.(string), nil
}

// Reset drops the cached secret.
func (c *CredentialCache) Reset() {
	c.value.Store(nil)
}

func (c *CredentialCache) useFallback() (string, error) {
	if c.fallback == "" {
		return "", ErrNoSecret
	}
	return c.fallback, nil
}

// extractToken returns the api_token field of a JSON secret, or the raw
// string when the secret is not JSON or lacks the field.
func extractToken(raw string) string {
	var doc struct {
		APIToken string `json:"api_token"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		logger.LogDebug("Secret is not JSON, using raw secret string")
		return raw
	}
	if doc.APIToken == "" {
		logger.LogWarn("Secret JSON has no 'api_token' key, using full secret string")
		return raw
	}
	return doc.APIToken
}
