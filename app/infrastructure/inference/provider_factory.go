package inference

import (
	"fmt"

	"solara.ai/insights-gateway/app/domain/generation"
)

// NewProvider selects the implementation named by cfg.Kind.
func NewProvider(cfg ProviderConfig) (generation.Provider, error) {
	switch cfg.Kind {
	case "", ProviderOpenAI:
		return NewOpenAIProvider(cfg), nil
	case ProviderHTTP:
		return NewHTTPProvider(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Kind)
	}
}

func NewProviderFromEnv() (generation.Provider, error) {
	return NewProvider(ConfigFromEnv())
}
