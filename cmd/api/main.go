// Package main is the entrypoint for the postkeeper API server.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/postkeeper/postkeeper/internal/auth"
	"github.com/postkeeper/postkeeper/internal/cache"
	"github.com/postkeeper/postkeeper/internal/config"
	"github.com/postkeeper/postkeeper/internal/handler"
	"github.com/postkeeper/postkeeper/internal/metrics"
	"github.com/postkeeper/postkeeper/internal/middleware"
	"github.com/postkeeper/postkeeper/internal/repository"
	"github.com/postkeeper/postkeeper/internal/server"
	"github.com/postkeeper/postkeeper/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.PoolOptions{
		Size:    cfg.RedisPoolSize,
		MinIdle: cfg.RedisMinIdleConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()
	tokens := auth.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if !tokens.Enabled() {
		logger.Warn("JWT_SECRET not set; only API keys are accepted")
	}

	userService := service.NewUserService(repo)
	postService := service.NewPostService(repo, cacheClient, cfg.LastModifiedCacheTTL, recorder, logger)

	r := newRouter(routerDeps{
		cfg:     cfg,
		logger:  logger,
		metrics: recorder,
		health: handler.NewHealthHandler(
			handler.Dependency{Name: "postgres", Checker: repo},
			handler.Dependency{Name: "redis", Checker: cacheClient},
		),
		posts: handler.NewPostHandler(userService, postService, logger, recorder),
		auth: middleware.AuthConfig{
			Logger:      logger,
			Keys:        repo,
			Cache:       cacheClient,
			Tokens:      tokens,
			MinDuration: middleware.DefaultMinAuthDuration,
		},
		limiter: cacheClient,
	})

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"cors_origins", cfg.GetCORSAllowedOrigins(),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger installs the process-wide slog logger described by cfg.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "postkeeper", "env", cfg.AppEnv)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
