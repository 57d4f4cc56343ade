// Package assess scores papers per category and runs assessments in parallel.
package assess

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/paperlens/internal/model"
)

// Provider names accepted in configuration.
const (
	ProviderMock   = "mock"
	ProviderGemini = "gemini"
)

// Defaults for the assessment section of the config.
const (
	DefaultProvider  = ProviderMock
	DefaultModel     = "gemini-2.0-flash"
	DefaultAPIKeyEnv = "GEMINI_API_KEY"
	DefaultWorkers   = 4
)

// Result is the outcome of assessing one paper. Fallback is set when some or
// all scores are defaults standing in for a failed assessment; Reason says why.
type Result struct {
	Scores   map[string]model.Score
	Fallback bool
	Reason   string
}

// Engine assesses a paper. Implementations never fail: failures are masked
// with default scores and reported through Result.Fallback.
type Engine interface {
	Assess(ctx context.Context, paper model.Paper) Result
}

// NewEngine builds the engine selected by cfg.Provider.
func NewEngine(ctx context.Context, cfg model.AssessConfig, logger *zap.Logger) (Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	categories := cfg.Categories
	if len(categories) == 0 {
		categories = model.DefaultCategories()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", ProviderMock:
		return NewMockEngine(categories, time.Now().UnixNano()), nil
	case ProviderGemini:
		envName := cfg.APIKeyEnv
		if envName == "" {
			envName = DefaultAPIKeyEnv
		}
		apiKey := os.Getenv(envName)
		if apiKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key in $%s", envName)
		}
		return NewGeminiEngine(ctx, apiKey, cfg.Model, categories,
			WithLogger(logger),
			WithFallback(NewMockEngine(categories, time.Now().UnixNano())))
	default:
		return nil, fmt.Errorf("unknown assessment provider %q (want %s or %s)", cfg.Provider, ProviderMock, ProviderGemini)
	}
}

// NormalizeProvider validates a provider name.
func NormalizeProvider(name string) (string, error) {
	switch p := strings.ToLower(strings.TrimSpace(name)); p {
	case "":
		return DefaultProvider, nil
	case ProviderMock, ProviderGemini:
		return p, nil
	default:
		return "", fmt.Errorf("unknown assessment provider %q", name)
	}
}
