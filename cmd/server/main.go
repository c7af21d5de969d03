package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mwestcott/habitflow/internal"
	"github.com/mwestcott/habitflow/internal/ai"
	"github.com/mwestcott/habitflow/internal/ai/mock"
	"github.com/mwestcott/habitflow/internal/ai/openai"
	"github.com/mwestcott/habitflow/internal/billing"
	"github.com/mwestcott/habitflow/internal/email"
	"github.com/mwestcott/habitflow/internal/handler"
	"github.com/mwestcott/habitflow/internal/metrics"
	"github.com/mwestcott/habitflow/internal/middleware"
	"github.com/mwestcott/habitflow/internal/repository"
	"github.com/mwestcott/habitflow/internal/service"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize quote provider
	provider, err := newQuoteProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("quote provider initialization failed: %w", err)
	}
	logger.Info("Quote provider ready", "provider", cfg.QuoteProvider)

	// Initialize services
	userService := service.NewUserService(repo, logger)
	entitlements := service.NewEntitlementService(repo, logger)
	quoteService := service.NewQuoteService(entitlements, provider, repo, logger)
	habitService := service.NewHabitService(repo, logger)

	// Initialize billing (optional)
	var billingService billing.Service
	if cfg.BillingEnabled() {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.StripePremiumPrice)
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing disabled (no credentials configured)")
	}

	// Initialize email (best effort; nil disables sending)
	emailService, err := newEmailService(cfg, logger)
	if err != nil {
		return fmt.Errorf("email service initialization failed: %w", err)
	}

	// Initialize middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(userService, logger, isSecure)
	authLimiter := middleware.NewAuthRateLimiter(logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService, emailService, authLimiter, logger, isSecure)
	habitHandler := handler.NewHabitHandler(habitService, logger)
	quoteHandler := handler.NewQuoteHandler(quoteService, logger)
	billingHandler := handler.NewBillingHandler(billingService, userService, cfg.BaseURL, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, entitlements, userService, emailService, logger)
	healthHandler := handler.NewHealthHandler(db, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	healthHandler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Middleware stacks. Every session-aware route sits behind WithUser;
	// protected routes add RequireUser. Quote generation also requires a
	// verified email so throwaway accounts cannot burn provider credits.
	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)
	requireVerified := middleware.Stack(authMw.WithUser, authMw.RequireUser, authMw.RequireVerifiedEmail)

	authHandler.RegisterRoutes(mux, requireUser)
	habitHandler.RegisterRoutes(mux, requireUser)
	quoteHandler.RegisterRoutes(mux, requireUser, requireVerified)
	billingHandler.RegisterRoutes(mux, requireUser)
	webhookHandler.RegisterRoutes(mux)

	// Global middleware: security headers, then logging, then metrics.
	root := middleware.Stack(
		securityMw.Handler,
		loggingMw.Handler,
		metrics.Middleware,
	)(mux)

	// Expired sessions and verification tokens accumulate without a
	// periodic sweep.
	go janitor(ctx, userService, logger)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newQuoteProvider builds the configured AI provider.
func newQuoteProvider(cfg *internal.Config, logger *slog.Logger) (ai.QuoteProvider, error) {
	providerConfig := ai.ProviderConfig{
		MaxRetries:     cfg.QuoteMaxRetries,
		RetryBaseDelay: cfg.QuoteRetryBaseDelay,
		RequestTimeout: cfg.QuoteRequestTimeout,
	}

	switch cfg.QuoteProvider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.OpenAIModel,
			ProviderConfig: providerConfig,
		}, logger)
	default:
		return mock.New(), nil
	}
}

// newEmailService builds the SMTP email sender.
func newEmailService(cfg *internal.Config, logger *slog.Logger) (email.EmailService, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP disabled (no host configured)")
		return nil, nil
	}

	return email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger)
}

// janitor sweeps expired sessions and verification tokens hourly.
func janitor(ctx context.Context, users service.UserService, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := users.DeleteExpiredSessions(ctx); err != nil {
				logger.Error("session cleanup failed", "error", err)
			}
			if err := users.DeleteExpiredEmailVerificationTokens(ctx); err != nil {
				logger.Error("verification token cleanup failed", "error", err)
			}
		}
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
