package inference

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/config/environment_variables"
)

const (
	ProviderOpenAI = "openai"
	ProviderHTTP   = "http"
)

var (
	ErrEmptyCompletion  = errors.New("inference: completion has no choices")
	ErrUnknownProvider  = errors.New("inference: unknown provider")
	ErrMissingBaseURL   = errors.New("inference: base url is required")
	ErrTruncatedPayload = errors.New("inference: completion truncated at max tokens")
)

type ProviderConfig struct {
	Kind      string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	// Timeout bounds a single Generate call. Keep it below the lock lease.
	Timeout time.Duration
}

func ConfigFromEnv() ProviderConfig {
	env := environment_variables.EnvironmentVariables
	cfg := ProviderConfig{
		Kind:      strings.ToLower(strings.TrimSpace(env.INFERENCE_PROVIDER)),
		BaseURL:   strings.TrimRight(env.INFERENCE_BASE_URL, "/"),
		APIKey:    env.INFERENCE_API_KEY,
		Model:     env.INFERENCE_MODEL,
		MaxTokens: env.INFERENCE_MAX_TOKENS,
		Timeout:   time.Duration(env.INFERENCE_TIMEOUT_SECONDS) * time.Second,
	}
	if cfg.Kind == "" {
		cfg.Kind = ProviderOpenAI
	}
	return cfg
}

func buildChatRequest(cfg ProviderConfig, prompt generation.Prompt) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt.User,
	})

	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.MaxTokens
	}
	request := openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: prompt.Temperature,
	}
	if prompt.JSONMode {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return request
}

// outputFromResponse takes the first choice as the payload. The coordinator
// validates that it is JSON.
func outputFromResponse(resp *openai.ChatCompletionResponse, fallbackModel string) (*generation.Output, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		return nil, ErrTruncatedPayload
	}
	model := resp.Model
	if model == "" {
		model = fallbackModel
	}
	return &generation.Output{
		Payload: json.RawMessage(stripCodeFence(choice.Message.Content)),
		Model:   model,
		Usage: generation.Usage{
			InputUnits:  int64(resp.Usage.PromptTokens),
			OutputUnits: int64(resp.Usage.CompletionTokens),
		},
	}, nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add even in
// JSON mode.
func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
