package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/tendant/myauth/authkit"
	"github.com/tendant/myauth/internal/config"
	"github.com/tendant/myauth/internal/notification"
	"github.com/tendant/myauth/pkg/auth"
	"github.com/tendant/myauth/pkg/repository"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := repository.OpenDB(ctx, cfg.DSN(), repository.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	logger.Info("connected to database")

	var redisClient redis.UniversalClient
	if cfg.HasRedis() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		redisClient = client
		logger.Info("session registry: redis", "addr", opts.Addr)
	}

	kit, err := authkit.New(authkit.Config{
		DB:                    db,
		AutoMigrate:           cfg.AutoMigrate,
		Redis:                 redisClient,
		RedisKeyPrefix:        cfg.RedisKeyPrefix,
		SessionStore:          cfg.SessionStore,
		JWTSecret:             cfg.JWTSecret,
		JWTIssuer:             cfg.JWTIssuer,
		AccessTokenTTL:        cfg.AccessTokenTTL,
		RefreshTokenTTL:       cfg.RefreshTokenTTL,
		VerificationTTL:       cfg.EmailVerificationTTL,
		AppBaseURL:            cfg.AppBaseURL,
		UniqueFields:          cfg.UniqueFields,
		StrictEmailValidation: cfg.StrictEmailValidation,
		BlockDisposableEmail:  cfg.BlockDisposableEmail,
		Notifier:              newNotifier(cfg, logger),
		CookieSecure:          cfg.CookieSecure,
		CookieDomain:          cfg.CookieDomain,
		CORSAllowedOrigins:    cfg.CORSAllowedOrigins,
		SecurityHeaders:       cfg.SecurityHeaders,
		MaxRequestBodySize:    cfg.MaxRequestBodySize,
		Metrics:               cfg.MetricsEnabled,
		Logger:                logger,
	})
	if err != nil {
		return err
	}

	if cfg.SessionStore == authkit.SessionStorePostgres {
		go pruneSessions(ctx, kit, sessionPruneInterval, logger)
	}

	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      kit.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

const sessionPruneInterval = time.Hour

// pruneSessions removes expired rows from the Postgres session store until
// ctx is cancelled.
func pruneSessions(ctx context.Context, kit *authkit.Kit, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := kit.PruneSessions(ctx)
			if err != nil {
				logger.Error("prune sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("pruned expired sessions", "count", n)
			}
		}
	}
}

// newNotifier returns the SMTP sender when configured, otherwise a sender
// that only logs.
func newNotifier(cfg *config.Config, logger *slog.Logger) auth.Notifier {
	if !cfg.HasSMTP() {
		logger.Warn("SMTP not configured, verification emails will only be logged")
		return notification.NewLogNotifier(logger)
	}
	logger.Info("email service enabled", "host", cfg.SMTPHost)
	return notification.NewEmailService(notification.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
}
