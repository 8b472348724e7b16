package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atout-travaux/website/internal"
	"github.com/atout-travaux/website/internal/airtable"
	"github.com/atout-travaux/website/internal/events"
	"github.com/atout-travaux/website/internal/handler"
	"github.com/atout-travaux/website/internal/i18n"
	"github.com/atout-travaux/website/internal/metrics"
	"github.com/atout-travaux/website/internal/middleware"
	"github.com/atout-travaux/website/internal/quote"
	"github.com/atout-travaux/website/web"
)

func run() error {
	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	isDev := cfg.Env == "development"
	isSecure := !isDev

	// Record store client
	store, err := airtable.New(airtable.Config{
		APIToken:       cfg.AirtableAPIToken,
		BaseID:         cfg.AirtableBaseID,
		RequestTimeout: cfg.AirtableTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("record store initialization failed: %w", err)
	}

	// Quote service
	quoteService := quote.NewService(store, logger)

	// Event bus; consent changes are logged so traffic analysis can be
	// reconciled with opt-in rates.
	bus := events.NewBus()
	bus.Subscribe(events.TopicConsentUpdate, func(payload any) {
		if consent, ok := payload.(handler.Consent); ok {
			logger.Info("consent updated",
				"analytics", consent.Analytics,
				"marketing", consent.Marketing)
		}
	})

	// Translator
	translator, err := i18n.New(logger)
	if err != nil {
		return fmt.Errorf("i18n initialization failed: %w", err)
	}

	// Template renderer; dev mode reads from disk for hot reload
	var templatesFS fs.FS
	if isDev {
		templatesFS = os.DirFS("web/templates")
	} else {
		templatesFS, err = web.Templates()
		if err != nil {
			return fmt.Errorf("embedded templates unavailable: %w", err)
		}
	}
	renderer, err := handler.NewRenderer(templatesFS, logger, isDev)
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}

	// Handlers
	pageHandler := handler.NewPageHandler(renderer, translator, logger, cfg.BaseURL)
	quoteHandler := handler.NewQuoteHandler(quoteService, logger)
	consentHandler := handler.NewConsentHandler(bus, logger, isSecure)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files
	staticFS, err := web.Static()
	if err != nil {
		return fmt.Errorf("embedded static assets unavailable: %w", err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics endpoint (basic auth when credentials are configured)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	pageHandler.RegisterRoutes(mux)
	quoteHandler.RegisterRoutes(mux)
	consentHandler.RegisterRoutes(mux)

	// Global middleware stack
	quoteLimiter := middleware.NewRateLimiter(cfg.QuoteRateLimit, cfg.QuoteRateWindow, logger)
	stack := middleware.Stack(
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		metrics.Middleware,
		middleware.NewSecurityHeadersMiddleware(isSecure).Handler,
		middleware.NewRateLimitMiddleware(quoteLimiter, "/api/quote/", logger).Handler,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: stack(mux),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
