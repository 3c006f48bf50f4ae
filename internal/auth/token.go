package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/postkeeper/postkeeper/internal/model"
)

var (
	// ErrTokensDisabled is returned when no signing secret is configured.
	ErrTokensDisabled = errors.New("bearer tokens are not enabled")
	// ErrInvalidToken covers malformed, expired and badly signed tokens.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims is the JWT payload accepted by the API. Subject carries the username.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 bearer tokens.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier returns a verifier for tokens signed with secret.
// An empty secret disables bearer tokens.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Enabled reports whether token verification is configured.
func (v *TokenVerifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// Verify parses a token and returns the identity it asserts.
func (v *TokenVerifier) Verify(raw string) (*model.Identity, error) {
	if !v.Enabled() {
		return nil, ErrTokensDisabled
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &model.Identity{
		Username: claims.Subject,
		Scopes:   parseScopeClaim(claims.Scope),
		Method:   model.AuthMethodToken,
	}, nil
}

// Issue signs a token for username valid for ttl.
func (v *TokenVerifier) Issue(username string, scopes []string, ttl time.Duration) (string, error) {
	if !v.Enabled() {
		return "", ErrTokensDisabled
	}

	now := time.Now()
	claims := Claims{
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// parseScopeClaim splits a space-delimited scope claim. Tokens without a
// scope claim get read and write on their own posts.
func parseScopeClaim(scope string) []string {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return []string{model.ScopeRead, model.ScopeWrite}
	}
	return fields
}
