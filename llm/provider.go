package llm

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// ErrUnknownProvider is returned by New for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown provider")

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Name    string
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderGemini:
		return DefaultGeminiModel
	case ProviderAnthropic:
		return DefaultAnthropicModel
	}
	return ""
}

// New builds the backend named by cfg.Name. Empty Model, BaseURL and Timeout
// fields keep the backend's defaults.
func New(cfg ProviderConfig) (LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", cfg.Name)
	}

	var httpClient *http.Client
	if cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	switch cfg.Name {
	case ProviderOpenAI, ProviderGemini:
		opts := []OpenAIOption{WithOpenAIAPIKey(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, WithOpenAIModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, WithOpenAIBaseURL(cfg.BaseURL))
		}
		if httpClient != nil {
			opts = append(opts, WithOpenAIHTTPClient(httpClient))
		}
		if cfg.Name == ProviderGemini {
			return NewGemini(opts...), nil
		}
		return NewOpenAI(opts...), nil

	case ProviderAnthropic:
		opts := []AnthropicOption{WithAPIKey(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if httpClient != nil {
			opts = append(opts, WithHTTPClient(httpClient))
		}
		return NewAnthropic(opts...), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Name)
}
