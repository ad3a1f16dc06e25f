package embedclient

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Aman-CERP/insightd/internal/apperrors"
)

// Provider identifies an embedding backend.
type Provider string

const (
	// ProviderOllama calls a running Ollama instance over HTTP (default).
	ProviderOllama Provider = "ollama"
	// ProviderStatic uses the dependency-free hash-based embedder.
	ProviderStatic Provider = "static"
)

// New builds an Embedder for provider, applying INSIGHTD_OLLAMA_HOST/
// INSIGHTD_OLLAMA_MODEL/INSIGHTD_OLLAMA_TIMEOUT overrides for the Ollama
// case. There is no silent fallback from Ollama to static: an
// unconfigured or unreachable Ollama instance is an
// ErrCodeEmbedderUnconfigured error the caller surfaces to the user,
// since falling back silently would mean search results computed under a
// different model than the one the user believes is active.
func New(ctx context.Context, provider Provider, model string) (Embedder, error) {
	switch provider {
	case ProviderStatic:
		return NewStaticEmbedder(), nil
	case ProviderOllama, "":
		return newOllama(ctx, model)
	default:
		return nil, apperrors.New(apperrors.ErrCodeEmbedderUnconfigured, "unknown embedding provider "+string(provider), nil)
	}
}

func newOllama(ctx context.Context, model string) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if model != "" {
		cfg.Model = model
	}
	if host := os.Getenv("INSIGHTD_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}
	if modelOverride := os.Getenv("INSIGHTD_OLLAMA_MODEL"); modelOverride != "" {
		cfg.Model = modelOverride
	}
	if timeoutStr := os.Getenv("INSIGHTD_OLLAMA_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = timeout
		}
	}

	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ollama unavailable: %w (configure a reachable Ollama instance, or select the static provider)", err)
	}
	return embedder, nil
}

// ParseProvider converts a string to a Provider, defaulting to Ollama for
// an empty or unrecognized value.
func ParseProvider(s string) Provider {
	switch strings.ToLower(s) {
	case "static":
		return ProviderStatic
	default:
		return ProviderOllama
	}
}

// ValidProviders lists every accepted provider name.
func ValidProviders() []string {
	return []string{string(ProviderOllama), string(ProviderStatic)}
}
