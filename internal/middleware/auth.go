package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/postkeeper/postkeeper/internal/auth"
	"github.com/postkeeper/postkeeper/internal/model"
)

// DefaultMinAuthDuration pads API key verification so that failures and
// successes take similar time.
const DefaultMinAuthDuration = 200 * time.Millisecond

// KeyStore looks up API keys for verification.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// IdentityCache remembers identities resolved from API keys.
type IdentityCache interface {
	GetIdentity(ctx context.Context, digest string) (*model.Identity, error)
	SetIdentity(ctx context.Context, digest string, id *model.Identity) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Keys   KeyStore
	// Cache may be nil.
	Cache IdentityCache
	// Tokens verifies bearer JWTs. Nil or disabled means API keys only.
	Tokens *auth.TokenVerifier
	// MinDuration is applied to the API key path. Zero disables padding.
	MinDuration time.Duration
}

// Auth returns a middleware that resolves the caller's Identity from an
// API key (Authorization: Bearer pst_... or X-API-Key) or a bearer JWT,
// and stores it in the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	a := &authenticator{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := extractCredential(r)
			if credential == "" {
				a.reject(w, r, "missing_credential")
				return
			}

			var (
				id     *model.Identity
				reason string
			)
			if strings.HasPrefix(credential, "pst_") {
				id, reason = a.apiKey(r, credential)
			} else {
				id, reason = a.token(credential)
			}
			if id == nil {
				a.reject(w, r, reason)
				return
			}

			annotateUser(r.Context(), id.Username)
			ctx := auth.ContextWithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type authenticator struct {
	cfg AuthConfig
}

func (a *authenticator) apiKey(r *http.Request, key string) (*model.Identity, string) {
	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); elapsed < a.cfg.MinDuration {
			time.Sleep(a.cfg.MinDuration - elapsed)
		}
	}()

	ctx := r.Context()

	parsed, err := auth.ParseAPIKey(key)
	if err != nil {
		return nil, "invalid_format"
	}

	digest := auth.CacheKey(key)
	if a.cfg.Cache != nil {
		if id, _ := a.cfg.Cache.GetIdentity(ctx, digest); id != nil {
			a.cfg.Logger.Debug("authentication successful",
				slog.String("username", id.Username),
				slog.String("key_id", id.KeyID),
				slog.Bool("cache_hit", true),
				slog.String("request_id", GetRequestID(ctx)),
			)
			return id, ""
		}
	}

	candidates, err := a.cfg.Keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		a.cfg.Logger.Error("database error during auth",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(ctx)),
		)
		return nil, "lookup_failed"
	}

	var matched *model.APIKey
	for _, k := range candidates {
		if k.IsRevoked() {
			continue
		}
		if ok, err := auth.VerifySecret(key, k.KeyHash); err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, "invalid_key"
	}

	id := &model.Identity{
		Username: matched.Username,
		Scopes:   matched.Scopes,
		Method:   model.AuthMethodAPIKey,
		KeyID:    matched.ID,
	}

	if a.cfg.Cache != nil {
		if err := a.cfg.Cache.SetIdentity(ctx, digest, id); err != nil {
			a.cfg.Logger.Warn("identity cache write failed", slog.String("error", err.Error()))
		}
	}

	go func(keyID string) {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.cfg.Keys.UpdateAPIKeyLastUsed(bg, keyID)
	}(matched.ID)

	a.cfg.Logger.Info("authentication successful",
		slog.String("username", id.Username),
		slog.String("key_id", id.KeyID),
		slog.String("key_prefix", matched.KeyPrefix),
		slog.Bool("cache_hit", false),
		slog.String("request_id", GetRequestID(ctx)),
	)
	return id, ""
}

func (a *authenticator) token(raw string) (*model.Identity, string) {
	if a.cfg.Tokens == nil || !a.cfg.Tokens.Enabled() {
		return nil, "tokens_disabled"
	}
	id, err := a.cfg.Tokens.Verify(raw)
	if err != nil {
		return nil, "invalid_token"
	}
	return id, ""
}

func (a *authenticator) reject(w http.ResponseWriter, r *http.Request, reason string) {
	a.cfg.Logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
	// Same message for every failure so callers cannot tell which part was wrong.
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing credentials")
}

// extractCredential reads "Authorization: Bearer <credential>", falling
// back to the X-API-Key header.
func extractCredential(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
