package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalizeName(name)] = f
}

// Get builds the named provider. An empty model lets the factory pick its
// configured default.
func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = normalizeName(name)
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(ctx, model)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Settings carries the provider credentials and endpoints a process knows
// about.
type Settings struct {
	GeminiAPIKey string
	GeminiModel  string

	OllamaBaseURL string
	OllamaModel   string

	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string

	Timeout time.Duration
}

// NewDefaultRegistry registers the gemini, ollama and openrouter backends.
func NewDefaultRegistry(s Settings) *Registry {
	reg := NewRegistry()

	reg.Register("gemini", func(ctx context.Context, model string) (Provider, error) {
		if strings.TrimSpace(model) == "" {
			model = s.GeminiModel
		}
		p, err := NewGeminiProvider(ctx, GeminiOptions{APIKey: s.GeminiAPIKey, Model: model, Timeout: s.Timeout})
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.Register("ollama", func(ctx context.Context, model string) (Provider, error) {
		if strings.TrimSpace(model) == "" {
			model = s.OllamaModel
		}
		return NewOllamaProvider(s.OllamaBaseURL, model, s.Timeout), nil
	})

	reg.Register("openrouter", func(ctx context.Context, model string) (Provider, error) {
		if strings.TrimSpace(model) == "" {
			model = s.OpenRouterModel
		}
		p, err := NewOpenRouterProvider(OpenRouterOptions{
			BaseURL: s.OpenRouterBaseURL,
			APIKey:  s.OpenRouterAPIKey,
			Model:   model,
			SiteURL: s.OpenRouterSiteURL,
			AppName: s.OpenRouterAppName,
			Timeout: s.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	return reg
}
