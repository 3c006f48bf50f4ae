package model

import (
	"slices"
	"time"
)

// Scope constants for request authorization.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

// ValidScopes contains all valid scope values.
var ValidScopes = []string{ScopeRead, ScopeWrite, ScopeAdmin}

// APIKey is a long-lived credential owned by a user.
type APIKey struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	Name       string     `json:"name,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// HasScope checks if the key has a specific scope.
// Admin scope implies all other scopes.
func (k *APIKey) HasScope(scope string) bool {
	return hasScope(k.Scopes, scope)
}

// AuthMethod names how an identity was established.
type AuthMethod string

const (
	AuthMethodAPIKey AuthMethod = "api_key"
	AuthMethodToken  AuthMethod = "token"
)

// Identity is the authenticated caller of a request.
// The auth middleware resolves it once and handlers receive it explicitly.
type Identity struct {
	Username string
	Scopes   []string
	Method   AuthMethod
	// KeyID is set for API key identities only.
	KeyID string
}

// HasScope checks if the identity has a specific scope.
func (i *Identity) HasScope(scope string) bool {
	return hasScope(i.Scopes, scope)
}

// LimiterKey returns the key used to bucket this identity for rate limiting.
func (i *Identity) LimiterKey() string {
	if i.KeyID != "" {
		return "key:" + i.KeyID
	}
	return "user:" + i.Username
}

func hasScope(scopes []string, scope string) bool {
	if slices.Contains(scopes, ScopeAdmin) {
		return true
	}
	return slices.Contains(scopes, scope)
}
