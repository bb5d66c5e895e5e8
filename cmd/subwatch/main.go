package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/subwatch/subwatch/internal/auth"
	"github.com/subwatch/subwatch/internal/config"
	httpserver "github.com/subwatch/subwatch/internal/http"
	"github.com/subwatch/subwatch/internal/http/features/account"
	"github.com/subwatch/subwatch/internal/http/features/analytics"
	"github.com/subwatch/subwatch/internal/http/features/cron"
	"github.com/subwatch/subwatch/internal/http/features/google"
	"github.com/subwatch/subwatch/internal/http/features/session"
	"github.com/subwatch/subwatch/internal/http/features/subscriptions"
	"github.com/subwatch/subwatch/internal/http/features/twofactor"
	"github.com/subwatch/subwatch/internal/http/features/verify"
	"github.com/subwatch/subwatch/internal/http/middleware"
	"github.com/subwatch/subwatch/internal/httputil"
	"github.com/subwatch/subwatch/internal/notification"
	"github.com/subwatch/subwatch/internal/store"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "error", err, "dir", cfg.DataDir)
		os.Exit(1)
	}

	// Initialize stores
	usersStore := store.NewUsersStore(cfg.DataDir)
	pendingStore := store.NewPendingStore(cfg.DataDir)
	tokensStore := store.NewTokensStore(cfg.DataDir)

	logger.Info("data stores ready", "dir", cfg.DataDir)

	// Initialize services
	sessionService := auth.NewSessionService(auth.SessionConfig{
		Secret: []byte(cfg.SessionSecret),
		Issuer: cfg.SessionIssuer,
		TTL:    cfg.SessionTTL,
	})

	verificationService := auth.NewVerificationService(auth.VerificationConfig{
		TokenTTL: cfg.EmailVerificationTTL,
	}, logger, tokensStore, usersStore, pendingStore)

	// Initialize email service if configured
	var emailService *notification.EmailService
	if cfg.HasSMTP() {
		emailService = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		logger.Info("email service enabled")
	}

	// Initialize Google service if configured
	var googleService *auth.GoogleService
	if cfg.HasGoogleOAuth() {
		googleService = auth.NewGoogleService(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURI:  cfg.GoogleRedirectURI,
		})
		logger.Info("Google OAuth enabled")
	}

	// Initialize two-factor service if configured
	var twoFactorService *auth.TwoFactorService
	if cfg.HasTwoFactor() {
		encryptionKey, err := hex.DecodeString(cfg.TwoFactorEncryptionKey)
		if err != nil || len(encryptionKey) != 32 {
			logger.Error("TWO_FACTOR_ENCRYPTION_KEY must be 64-char hex (32 bytes)")
			os.Exit(1)
		}
		twoFactorService = auth.NewTwoFactorService(auth.TwoFactorConfig{
			Issuer:        cfg.SessionIssuer,
			EncryptionKey: encryptionKey,
		}, usersStore)
		logger.Info("two-factor service enabled")
	}

	cookieConfig := httputil.DefaultCookieConfig()
	cookieConfig.Secure = cfg.CookieSecure

	// Notification job and its HTTP trigger
	var notificationJob *notification.Job
	if emailService != nil {
		notificationJob = notification.NewJob(logger, usersStore, emailService)
	}

	handlers := httpserver.Handlers{
		Session:       session.NewHandler(cookieConfig),
		Subscriptions: subscriptions.NewHandler(logger, usersStore),
		Analytics:     analytics.NewHandler(logger, usersStore),
		Account:       account.NewHandler(logger, usersStore, pendingStore, tokensStore, twoFactorService, cookieConfig),
		Verify:        verify.NewHandler(logger, verificationService, emailService, pendingStore, cfg.AppBaseURL),
	}
	if googleService != nil {
		handlers.Google = google.NewHandler(
			logger,
			googleService,
			sessionService,
			verificationService,
			twoFactorService,
			emailService,
			usersStore,
			pendingStore,
			cfg.AppBaseURL,
			cfg.RequireEmailVerify,
			cookieConfig,
		)
	}
	if twoFactorService != nil {
		handlers.TwoFactor = twofactor.NewHandler(logger, twoFactorService, sessionService, usersStore, cookieConfig)
	}
	if notificationJob != nil {
		if cfg.CronSecret == "" {
			logger.Warn("CRON_SECRET not set, cron endpoint is unauthenticated")
		}
		handlers.Cron = cron.NewHandler(logger, notificationJob, cfg.CronSecret)
	}

	// Create router
	router := httpserver.NewRouter(httpserver.Deps{
		Logger:       logger,
		Config:       cfg,
		Auth:         middleware.Auth(sessionService),
		RateLimiters: middleware.CreateRateLimiters(cfg.RateLimit, logger),
		Handlers:     handlers,
	})

	// Optional internal ticker for deployments without an external cron
	jobCtx, stopJob := context.WithCancel(context.Background())
	defer stopJob()
	if notificationJob != nil && cfg.NotifyInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.NotifyInterval)
			defer ticker.Stop()
			for {
				select {
				case <-jobCtx.Done():
					return
				case now := <-ticker.C:
					result, err := notificationJob.Run(jobCtx, now)
					if err != nil {
						logger.Error("notification sweep failed", "error", err)
						continue
					}
					logger.Info("notification sweep completed", "sent", result.NotificationsSent)
				}
			}
		}()
		logger.Info("notification ticker enabled", "interval", cfg.NotifyInterval.String())
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stopJob()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
