package llm

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jmgress/smartrecover/internal/apperr"
	"github.com/jmgress/smartrecover/internal/config"
	"github.com/jmgress/smartrecover/internal/llm/anthropic"
	"github.com/jmgress/smartrecover/internal/llm/google"
	"github.com/jmgress/smartrecover/internal/llm/openai"
	"github.com/jmgress/smartrecover/internal/observability"
)

// New constructs a Provider for cfg.Provider. Ollama reuses the OpenAI
// client pointed at a local base URL: Ollama's OpenAI-compatible endpoint
// needs nothing the OpenAI client doesn't already do. logger is threaded
// into each backend client so request/response failures are logged with
// their (redacted) content, not silently swallowed into the wrapped error.
func New(cfg config.LLMConfig, logger zerolog.Logger) (Provider, error) {
	client := observability.NewHTTPClient(&http.Client{})
	switch cfg.Provider {
	case "openai":
		return openai.New(openai.Config(cfg.OpenAI), cfg.Temperature, client, logger), nil
	case "google":
		return google.New(cfg.Google, cfg.Temperature, client, logger)
	case "anthropic":
		return anthropic.New(cfg.Anthropic, cfg.Temperature, client, logger), nil
	case "ollama":
		return openai.New(openai.Config{APIKey: "ollama", Model: cfg.Ollama.Model, BaseURL: cfg.Ollama.BaseURL}, cfg.Temperature, client, logger), nil
	default:
		return nil, apperr.New(apperr.ConfigError, "unknown LLM provider: "+cfg.Provider)
	}
}

// Switcher holds the currently active Provider and allows the admin API to
// hot-swap it at runtime under a mutex (spec §4.8).
type Switcher struct {
	mu       sync.RWMutex
	provider Provider
}

func NewSwitcher(p Provider) *Switcher {
	return &Switcher{provider: p}
}

func (s *Switcher) Current() Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

func (s *Switcher) Swap(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = p
}
