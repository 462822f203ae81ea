package openai

// Config contains OpenAI provider configuration.
// All fields map to OpenAI SDK options:
//   - APIKey: Maps to option.WithAPIKey()
//   - BaseURL: Maps to option.WithBaseURL()
//   - Timeout: Maps to option.WithRequestTimeout() (in seconds)
//   - MaxRetries: Maps to option.WithMaxRetries()
//
// Note MaxRetries here is the SDK's transport-level retry and is independent
// of the orchestration client's retry budget.
type Config struct {
	APIKey       string `env:"OPENAI_API_KEY"`
	BaseURL      string `env:"OPENAI_BASE_URL"      envDefault:"https://api.openai.com/v1"`
	Timeout      int    `env:"OPENAI_TIMEOUT"       envDefault:"60"`
	MaxRetries   int    `env:"OPENAI_MAX_RETRIES"   envDefault:"0"`
	DefaultModel string `env:"OPENAI_DEFAULT_MODEL" envDefault:"gpt-4"`
}

// OpenRouterConfig configures the OpenRouter compatibility provider.
type OpenRouterConfig struct {
	APIKey       string `env:"OPENROUTER_API_KEY"`
	BaseURL      string `env:"OPENROUTER_BASE_URL"      envDefault:"https://openrouter.ai/api/v1"`
	Timeout      int    `env:"OPENROUTER_TIMEOUT"       envDefault:"60"`
	DefaultModel string `env:"OPENROUTER_DEFAULT_MODEL" envDefault:"anthropic/claude-sonnet-4.5"`
}

// OllamaConfig configures the local Ollama compatibility provider.
type OllamaConfig struct {
	Host         string `env:"OLLAMA_HOST"          envDefault:"http://localhost:11434"`
	Timeout      int    `env:"OLLAMA_TIMEOUT"       envDefault:"120"`
	DefaultModel string `env:"OLLAMA_DEFAULT_MODEL" envDefault:"llama3.2"`
}
