package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/contentdeck/aigen/internal/api"
	"github.com/contentdeck/aigen/internal/db"
	"github.com/contentdeck/aigen/internal/generator"
	"github.com/contentdeck/aigen/internal/logging"
	"github.com/contentdeck/aigen/internal/provider"
	"github.com/contentdeck/aigen/internal/ratelimit"
	"github.com/contentdeck/aigen/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPort          = "8080"
	defaultRatePerMinute = 30
	shutdownTimeout      = 10 * time.Second
	readHeaderTimeout    = 10 * time.Second
	startupPingTimeout   = 5 * time.Second
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	tracingConfig := telemetry.TracingConfigFromEnv()
	logger := logging.New(getEnvOrDefault("APP_ENV", "production"), tracingConfig.ServiceName)

	if err := run(logger, tracingConfig); err != nil {
		logger.Fatal().Err(err).Msg("Server exited")
	}
}

func run(logger zerolog.Logger, tracingConfig telemetry.TracingConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, tracingConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to flush traces")
		}
	}()

	// Database
	dbConfig, err := db.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}
	database, err := db.Connect(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close(database)
	logger.Info().Str("host", dbConfig.Host).Str("database", dbConfig.Database).Msg("Connected to database")

	if dbConfig.AutoMigrate {
		applied, err := db.Migrate(ctx, database)
		if err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info().Strs("migrations", applied).Msg("Database migrations applied")
	}

	queries := db.NewQueries(database)

	// Providers
	openAI, anthropic, err := newProviders(logger)
	if err != nil {
		return err
	}

	service := generator.NewService(generator.Config{
		Ledger:         generator.NewLedger(queries),
		Budget:         generator.NewBudgetGuard(queries),
		TextProviders:  []generator.TextProvider{openAI, anthropic},
		ImageProviders: []generator.ImageProvider{openAI},
		Logger:         &logger,
	})
	for _, status := range service.ProviderStatus() {
		logger.Info().
			Str("provider", string(status.Name)).
			Bool("configured", status.Configured).
			Msg("Provider registered")
	}

	// Rate limiting
	ratePerMinute, err := envInt("AI_RATE_PER_MINUTE", defaultRatePerMinute)
	if err != nil {
		return err
	}
	limiter := api.NewTenantRateLimiter(ratePerMinute, time.Minute)

	handlers := api.NewHandlers(service)
	healthHandlers := api.NewHealthHandlers(tracingConfig.ServiceName, database)

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		hourly, err := envInt("AI_TENANT_HOURLY_LIMIT", ratelimit.DefaultHourlyLimit)
		if err != nil {
			return err
		}
		shared, err := ratelimit.NewTenantLimiter(redisURL, hourly)
		if err != nil {
			return err
		}
		defer shared.Close()

		pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
		if err := shared.Ping(pingCtx); err != nil {
			logger.Warn().Err(err).Msg("Redis not reachable at startup; shared rate limit fails open")
		}
		cancel()

		limiter.WithShared(shared)
		healthHandlers.AddCheck("redis", api.PingFunc(shared.Ping))
		logger.Info().Int("hourly_limit", hourly).Msg("Shared tenant rate limit enabled")
	}

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = readHeaderTimeout

	api.SetupRoutes(e, handlers, healthHandlers, api.RouterConfig{
		ServiceName:    tracingConfig.ServiceName,
		Logger:         logger,
		RateLimiter:    limiter,
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		BodyLimits:     api.DefaultBodyLimitConfig(),
	})

	addr := ":" + getEnvOrDefault("PORT", defaultPort)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("Starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return limiter.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info().Msg("Server shutdown complete")
		return nil
	})

	return g.Wait()
}

// newProviders builds both adapters from the environment. A missing API key
// leaves an adapter unconfigured rather than failing startup.
func newProviders(logger zerolog.Logger) (*provider.OpenAI, *provider.Anthropic, error) {
	cfg, err := provider.ConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}

	pricing := provider.DefaultPricing()
	if cfg.PricingFile != "" {
		pricing, err = provider.LoadPricingFile(cfg.PricingFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("file", cfg.PricingFile).Msg("Loaded pricing overrides")
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	openAI, err := provider.NewOpenAI(provider.OpenAIOptions{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		HTTPClient: httpClient,
		Pricing:    pricing,
		Logger:     &logger,
	})
	if err != nil {
		return nil, nil, err
	}

	anthropic, err := provider.NewAnthropic(provider.AnthropicOptions{
		APIKey:     cfg.AnthropicAPIKey,
		BaseURL:    cfg.AnthropicBaseURL,
		HTTPClient: httpClient,
		Pricing:    pricing,
		Logger:     &logger,
	})
	if err != nil {
		return nil, nil, err
	}

	return openAI, anthropic, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer, got %q", key, raw)
	}
	return n, nil
}

// splitList parses a comma separated environment value
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
