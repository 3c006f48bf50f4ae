// Command bootstrap creates a user and mints credentials for local use.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"

	"github.com/postkeeper/postkeeper/internal/auth"
	"github.com/postkeeper/postkeeper/internal/model"
	"github.com/postkeeper/postkeeper/internal/repository"
)

type output struct {
	Username  string   `json:"username"`
	KeyID     string   `json:"key_id"`
	Key       string   `json:"key"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
	Token     string   `json:"token,omitempty"`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		username    = flag.String("username", "demo", "User to own the credentials")
		name        = flag.String("name", "bootstrap", "API key name")
		scopesInput = flag.String("scopes", "read,write", "Comma-separated scopes (read,write,admin)")
		env         = flag.String("env", auth.EnvLive, "Key environment marker: live or test")
		jwtSecret   = flag.String("jwt-secret", os.Getenv("JWT_SECRET"), "Also issue a bearer token signed with this secret")
		jwtIssuer   = flag.String("jwt-issuer", envOr("JWT_ISSUER", "postkeeper"), "Issuer claim for the bearer token")
		tokenTTL    = flag.Duration("token-ttl", 24*time.Hour, "Bearer token lifetime")
		format      = flag.String("format", "plain", "Output format: plain or json")
		revokeID    = flag.String("revoke", "", "Revoke the API key with this ID instead of minting one")
	)
	flag.Parse()

	if *revokeID != "" {
		if err := revoke(*databaseURL, *revokeID, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(*databaseURL, *username, *name, *scopesInput, *env, *jwtSecret, *jwtIssuer, *tokenTTL, *format, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(databaseURL, username, name, scopesInput, env, jwtSecret, jwtIssuer string, tokenTTL time.Duration, format string, w io.Writer) error {
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if strings.TrimSpace(username) == "" {
		return errors.New("username is required")
	}
	format = strings.ToLower(format)
	if format != "plain" && format != "json" {
		return errors.New("invalid format; use plain or json")
	}

	scopes, err := parseScopes(scopesInput)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, databaseURL, repository.PoolOptions{MaxConns: 2, MinConns: 1})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer repo.Close()

	if _, err := repo.GetOrCreateUser(ctx, username); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	generated, err := auth.GenerateAPIKey(env)
	if err != nil {
		return fmt.Errorf("generate api key: %w", err)
	}

	apiKey := &model.APIKey{
		ID:        ulid.Make().String(),
		Username:  username,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    scopes,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	out := output{
		Username:  username,
		KeyID:     apiKey.ID,
		Key:       generated.Plaintext,
		KeyPrefix: apiKey.KeyPrefix,
		Scopes:    scopes,
	}

	if jwtSecret != "" {
		token, err := auth.NewTokenVerifier(jwtSecret, jwtIssuer).Issue(username, scopes, tokenTTL)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		out.Token = token
	}

	return writeOutput(w, format, out)
}

// revoke marks a key revoked. Cached identities for it expire on their own TTL.
func revoke(databaseURL, id string, w io.Writer) error {
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, databaseURL, repository.PoolOptions{MaxConns: 2, MinConns: 1})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer repo.Close()

	key, err := repo.GetAPIKeyByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find api key %s: %w", id, err)
	}
	if key.IsRevoked() {
		_, err := fmt.Fprintf(w, "key %s (%s) already revoked\n", key.ID, key.Username)
		return err
	}
	if err := repo.RevokeAPIKey(ctx, id); err != nil {
		return fmt.Errorf("revoke api key %s: %w", id, err)
	}
	_, err = fmt.Fprintf(w, "revoked key %s (%s, prefix %s)\n", key.ID, key.Username, key.KeyPrefix)
	return err
}

func writeOutput(w io.Writer, format string, out output) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if _, err := fmt.Fprintln(w, out.Key); err != nil {
		return err
	}
	if out.Token != "" {
		_, err := fmt.Fprintln(w, out.Token)
		return err
	}
	return nil
}

func parseScopes(input string) ([]string, error) {
	var scopes []string
	for _, part := range strings.Split(input, ",") {
		scope := strings.ToLower(strings.TrimSpace(part))
		if scope == "" {
			continue
		}
		if !slices.Contains(model.ValidScopes, scope) {
			return nil, fmt.Errorf("invalid scope: %s", scope)
		}
		if !slices.Contains(scopes, scope) {
			scopes = append(scopes, scope)
		}
	}
	if len(scopes) == 0 {
		return []string{model.ScopeRead, model.ScopeWrite}, nil
	}
	return scopes, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
