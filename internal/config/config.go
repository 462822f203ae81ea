package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/howl/internal/provider/anthropic"
	"github.com/davidbz/howl/internal/provider/claudecli"
	"github.com/davidbz/howl/internal/provider/openai"
)

// Config represents the full service configuration.
type Config struct {
	Server     ServerConfig
	CORS       CORSConfig
	LLM        LLMConfig
	Redis      RedisConfig
	OpenAI     openai.Config
	OpenRouter openai.OpenRouterConfig
	Ollama     openai.OllamaConfig
	Anthropic  anthropic.Config
	ClaudeCLI  claudecli.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"30"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// LLMConfig controls provider selection and the retry/fallback behavior of
// the orchestration client.
type LLMConfig struct {
	Provider          string        `env:"LLM_PROVIDER"           envDefault:"openai"`
	FallbackProviders []string      `env:"LLM_FALLBACK_PROVIDERS" envSeparator:"," envDefault:"anthropic,openrouter,ollama"`
	Model             string        `env:"LLM_MODEL"              envDefault:"gpt-4"`
	MaxRetries        int           `env:"LLM_MAX_RETRIES"        envDefault:"3"`
	InitialWait       time.Duration `env:"LLM_INITIAL_WAIT"       envDefault:"1s"`
	MaxWait           time.Duration `env:"LLM_MAX_WAIT"           envDefault:"30s"`
	// CallTimeout bounds a whole Call including retries and fallbacks.
	// Zero disables the deadline.
	CallTimeout time.Duration `env:"LLM_CALL_TIMEOUT" envDefault:"0"`
}

// RedisConfig contains response cache settings. An empty Addr disables
// caching entirely.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB"   envDefault:"0"`
	CacheTTL time.Duration `env:"CACHE_TTL"  envDefault:"1h"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	Server     *ServerConfig
	CORS       *CORSConfig
	LLM        *LLMConfig
	Redis      *RedisConfig
	OpenAI     *openai.Config
	OpenRouter *openai.OpenRouterConfig
	Ollama     *openai.OllamaConfig
	Anthropic  *anthropic.Config
	ClaudeCLI  *claudecli.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.LLM,
		&cfg.Redis,
		&cfg.OpenAI,
		&cfg.OpenRouter,
		&cfg.Ollama,
		&cfg.Anthropic,
		&cfg.ClaudeCLI,
	}
}
