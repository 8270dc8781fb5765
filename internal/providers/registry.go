package providers

import (
	"log/slog"
	"time"

	"github.com/blogspy/backend/internal/models"
)

// Provider modes.
const (
	ModeFixture = "fixture"
	ModeLive    = "live"
)

// Endpoint is the credentials and address of one live provider.
type Endpoint struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Config selects and configures the adapter set.
type Config struct {
	Mode          string
	Timeout       time.Duration
	RatePerSecond float64

	Search     Endpoint
	OpenAI     Endpoint
	Perplexity Endpoint
	Gemini     Endpoint
	Anthropic  Endpoint
}

// NewSet builds one adapter per real provider, in models.RealProviders order.
// Fixture mode ignores credentials. Live mode keeps keyless adapters so the
// provider still reports a hidden+error result.
func NewSet(cfg Config, log *slog.Logger) []Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}

	if cfg.Mode != ModeLive {
		log.Info("providers: using demo adapters", "mode", ModeFixture)
		set := make([]Adapter, 0, len(models.RealProviders))
		for _, p := range models.RealProviders {
			set = append(set, &Demo{Provider: p})
		}
		return set
	}

	live := []Adapter{
		NewSearchEngine(cfg.Search.BaseURL, cfg.Search.APIKey, cfg.Timeout, cfg.RatePerSecond),
		NewLLM(OpenAIDialect, cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.Timeout, cfg.RatePerSecond),
		NewLLM(PerplexityDialect, cfg.Perplexity.BaseURL, cfg.Perplexity.APIKey, cfg.Perplexity.Model, cfg.Timeout, cfg.RatePerSecond),
		NewLLM(GeminiDialect, cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Timeout, cfg.RatePerSecond),
		NewLLM(AnthropicDialect, cfg.Anthropic.BaseURL, cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Timeout, cfg.RatePerSecond),
	}
	for _, ep := range []struct {
		id  models.ProviderID
		key string
	}{
		{models.ProviderGoogle, cfg.Search.APIKey},
		{models.ProviderChatGPT, cfg.OpenAI.APIKey},
		{models.ProviderPerplexity, cfg.Perplexity.APIKey},
		{models.ProviderGemini, cfg.Gemini.APIKey},
		{models.ProviderClaude, cfg.Anthropic.APIKey},
	} {
		if ep.key == "" {
			log.Warn("providers: api key not configured", "provider", ep.id)
		}
	}
	log.Info("providers: using live adapters", "mode", ModeLive, "timeout", cfg.Timeout)
	return live
}
