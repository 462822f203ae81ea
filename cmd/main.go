package main

import (
	"context"
	"log"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/davidbz/howl/internal/cache/redis"
	"github.com/davidbz/howl/internal/config"
	"github.com/davidbz/howl/internal/domain"
	"github.com/davidbz/howl/internal/http"
	"github.com/davidbz/howl/internal/http/middleware"
	"github.com/davidbz/howl/internal/observability"
	"github.com/davidbz/howl/internal/provider/anthropic"
	"github.com/davidbz/howl/internal/provider/claudecli"
	"github.com/davidbz/howl/internal/provider/echo"
	"github.com/davidbz/howl/internal/provider/openai"
	"github.com/davidbz/howl/internal/provider/registry"
	"github.com/davidbz/howl/internal/routing"
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *http.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(func() domain.EventPublisher {
		return observability.NewEventBus(slog.Default())
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Provider Registry
	if err := container.Provide(func() domain.ProviderRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// Register provider factories (invoked for side effects). Providers that
	// need credentials are only registered when configured, so the router
	// silently skips them otherwise.
	if err := container.Invoke(registerProviders); err != nil {
		log.Fatalf("Failed to register providers: %v", err)
	}

	// Pricing
	if err := container.Provide(func() domain.PricingRegistry {
		return domain.NewInMemoryPricingRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide pricing registry: %v", err)
	}
	if err := container.Invoke(registerPricing); err != nil {
		log.Fatalf("Failed to register pricing: %v", err)
	}
	if err := container.Provide(func(pricing domain.PricingRegistry) domain.CostCalculator {
		return domain.NewStandardCostCalculator(pricing)
	}); err != nil {
		log.Fatalf("Failed to provide cost calculator: %v", err)
	}

	// Routing
	if err := container.Provide(func(cfg *config.LLMConfig) domain.Router {
		return routing.NewFallbackRouter(cfg.Provider, cfg.FallbackProviders)
	}); err != nil {
		log.Fatalf("Failed to provide router: %v", err)
	}

	// Response cache (disabled unless Redis is configured)
	if err := container.Provide(func(cfg *config.RedisConfig) domain.ResponseCache {
		if cfg.Addr == "" {
			return nil
		}

		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return redis.NewResponseCache(client, "howl:response:", cfg.CacheTTL)
	}); err != nil {
		log.Fatalf("Failed to provide response cache: %v", err)
	}

	// Orchestration client
	if err := container.Provide(func(
		reg domain.ProviderRegistry,
		router domain.Router,
		costCalculator domain.CostCalculator,
		cache domain.ResponseCache,
		events domain.EventPublisher,
		cfg *config.LLMConfig,
	) *domain.Client {
		return domain.NewClient(reg, router, costCalculator, cache, events, domain.ClientConfig{
			MaxRetries:   cfg.MaxRetries,
			InitialWait:  cfg.InitialWait,
			MaxWait:      cfg.MaxWait,
			CallTimeout:  cfg.CallTimeout,
			DefaultModel: cfg.Model,
		})
	}); err != nil {
		log.Fatalf("Failed to provide orchestration client: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(func(client *domain.Client, reg domain.ProviderRegistry) *http.Handler {
		return http.NewHandler(client, reg)
	}); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(func(cfg *config.CORSConfig) middleware.Middleware {
		return middleware.BuildMiddlewareChain(cfg)
	}); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

func registerProviders(reg domain.ProviderRegistry, cfg *config.Config) {
	reg.Register("echo", func(_ domain.Settings) (domain.Provider, error) {
		return echo.NewProvider(), nil
	})

	if cfg.OpenAI.APIKey != "" {
		reg.Register("openai", func(_ domain.Settings) (domain.Provider, error) {
			return openai.NewProvider(cfg.OpenAI)
		})
	}

	if cfg.Anthropic.APIKey != "" {
		reg.Register("anthropic", func(_ domain.Settings) (domain.Provider, error) {
			return anthropic.NewProvider(cfg.Anthropic)
		})
	}

	if cfg.OpenRouter.APIKey != "" {
		reg.Register("openrouter", func(_ domain.Settings) (domain.Provider, error) {
			return openai.NewOpenRouterProvider(cfg.OpenRouter)
		})
	}

	reg.Register("ollama", func(_ domain.Settings) (domain.Provider, error) {
		return openai.NewOllamaProvider(cfg.Ollama)
	})

	reg.Register("claude_cli", func(_ domain.Settings) (domain.Provider, error) {
		return claudecli.NewProvider(cfg.ClaudeCLI), nil
	})
}

func registerPricing(pricing domain.PricingRegistry) error {
	ctx := context.Background()

	if err := echo.RegisterPricing(ctx, pricing); err != nil {
		return err
	}
	if err := openai.RegisterPricing(ctx, pricing); err != nil {
		return err
	}
	if err := anthropic.RegisterPricing(ctx, pricing); err != nil {
		return err
	}

	return nil
}
