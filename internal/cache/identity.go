package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/postkeeper/postkeeper/internal/model"
)

const (
	identityPrefix = "auth:identity:"
	identityTTL    = 5 * time.Minute
)

type cachedIdentity struct {
	Username string   `json:"username"`
	Scopes   []string `json:"scopes"`
	Method   string   `json:"method"`
	KeyID    string   `json:"key_id,omitempty"`
}

// GetIdentity returns a previously verified identity for an API key digest.
// A miss or a corrupt entry yields nil, nil.
func (c *Cache) GetIdentity(ctx context.Context, digest string) (*model.Identity, error) {
	data, err := c.client.Get(ctx, identityPrefix+digest).Bytes()
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	var cached cachedIdentity
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, nil //nolint:nilerr
	}

	return &model.Identity{
		Username: cached.Username,
		Scopes:   cached.Scopes,
		Method:   model.AuthMethod(cached.Method),
		KeyID:    cached.KeyID,
	}, nil
}

// SetIdentity caches a verified identity under an API key digest.
func (c *Cache) SetIdentity(ctx context.Context, digest string, id *model.Identity) error {
	data, err := json.Marshal(cachedIdentity{
		Username: id.Username,
		Scopes:   id.Scopes,
		Method:   string(id.Method),
		KeyID:    id.KeyID,
	})
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return c.client.Set(ctx, identityPrefix+digest, data, identityTTL).Err()
}

// DeleteIdentity removes a cached identity, e.g. after key revocation.
func (c *Cache) DeleteIdentity(ctx context.Context, digest string) error {
	return c.client.Del(ctx, identityPrefix+digest).Err()
}
