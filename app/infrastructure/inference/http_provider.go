package inference

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"resty.dev/v3"
	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/app/utils/httpclients"
	"solara.ai/insights-gateway/app/utils/logger"
)

const chatCompletionsPath = "/v1/chat/completions"

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// HTTPProvider posts chat completions to a self-hosted OpenAI-compatible
// endpoint with resty.
type HTTPProvider struct {
	client *resty.Client
	config ProviderConfig
}

func NewHTTPProvider(cfg ProviderConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	client := httpclients.NewClient("HTTPInferenceProvider", cfg.Timeout).
		SetBaseURL(cfg.BaseURL)
	return &HTTPProvider{
		client: client,
		config: cfg,
	}, nil
}

func (p *HTTPProvider) Generate(ctx context.Context, prompt generation.Prompt) (*generation.Output, error) {
	var result openai.ChatCompletionResponse
	var failure errorEnvelope
	req := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(buildChatRequest(p.config, prompt)).
		SetResult(&result).
		SetError(&failure)
	if p.config.APIKey != "" {
		req.SetAuthToken(p.config.APIKey)
	}
	resp, err := req.Post(chatCompletionsPath)
	if err != nil {
		return nil, fmt.Errorf("http chat completion: %w", err)
	}
	if resp.IsError() {
		logger.GetLogger().WithFields(logrus.Fields{
			"provider":    ProviderHTTP,
			"status_code": resp.StatusCode(),
			"error_type":  failure.Error.Type,
		}).Warn("chat completion rejected")
		msg := failure.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return nil, fmt.Errorf("http chat completion: status %d: %s", resp.StatusCode(), msg)
	}
	return outputFromResponse(&result, p.config.Model)
}
