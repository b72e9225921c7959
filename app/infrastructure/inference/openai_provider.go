package inference

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/app/utils/logger"
)

// OpenAIProvider calls an OpenAI-compatible API through go-openai.
type OpenAIProvider struct {
	client *openai.Client
	config ProviderConfig
}

func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt generation.Prompt) (*generation.Output, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}
	started := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, buildChatRequest(p.config, prompt))
	if err != nil {
		logger.GetLogger().WithFields(logrus.Fields{
			"provider": ProviderOpenAI,
			"model":    p.config.Model,
			"elapsed":  time.Since(started).String(),
		}).WithError(err).Warn("chat completion failed")
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	return outputFromResponse(&resp, p.config.Model)
}
