// File path: internal/llm/providers/inference.go
package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/smpleo/leochat/internal/common"
	"github.com/smpleo/leochat/internal/llm"
)

const defaultEndpoint = "https://router.huggingface.co/v1"

// InferenceProvider talks to a hosted OpenAI-compatible inference endpoint
// (the Hugging Face router by default). One provider instance serves one
// chat model; the embedding model is shared across instances.
type InferenceProvider struct {
	client     *openai.Client
	chatModel  string
	embedModel string
}

// Options configures the inference client.
type Options struct {
	Token      string
	Endpoint   string
	EmbedModel string
	Timeout    time.Duration
}

func (o *Options) applyDefaults() {
	if strings.TrimSpace(o.Endpoint) == "" {
		o.Endpoint = defaultEndpoint
	}
	if strings.TrimSpace(o.EmbedModel) == "" {
		o.EmbedModel = "firqaaa/indo-sentence-bert-base"
	}
}

// NewInferenceProvider constructs a provider for the given chat model.
func NewInferenceProvider(chatModel string, opts Options) *InferenceProvider {
	opts.applyDefaults()
	cfg := openai.DefaultConfig(opts.Token)
	cfg.BaseURL = strings.TrimRight(opts.Endpoint, "/")
	if opts.Timeout > 0 {
		cfg.HTTPClient.Timeout = opts.Timeout
	}
	logger := common.Logger()
	logger.Info("llm: inference provider configured",
		"chat_model", chatModel, "embed_model", opts.EmbedModel, "endpoint", cfg.BaseURL)
	return &InferenceProvider{
		client:     openai.NewClientWithConfig(cfg),
		chatModel:  chatModel,
		embedModel: opts.EmbedModel,
	}
}

// Chat sends the assembled message list and returns the single completion.
// Only temperature, top_p and max_tokens travel to the endpoint; top_k and
// repetition_penalty are not part of the OpenAI-compatible surface.
func (p *InferenceProvider) Chat(ctx context.Context, messages []llm.Message, cfg llm.ModelConfig) (string, error) {
	if p == nil || p.client == nil {
		return "", fmt.Errorf("llm: inference client not configured")
	}
	logger := common.Logger()
	logger.Debug("llm: sending chat completion", "model", p.chatModel, "messages", len(messages))
	req := openai.ChatCompletionRequest{
		Model:       p.chatModel,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
	}
	for _, msg := range messages {
		role, err := wireRole(msg.Role)
		if err != nil {
			return "", err
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		logger.Error("llm: chat completion failed", "model", p.chatModel, "error", err)
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices returned")
	}
	logger.Debug("llm: chat completion succeeded", "model", p.chatModel)
	return resp.Choices[0].Message.Content, nil
}

// Embed maps each input text to its embedding vector.
func (p *InferenceProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("llm: inference client not configured")
	}
	if len(input) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.embedModel),
		Input: input,
	})
	if err != nil {
		common.Logger().Error("llm: embedding request failed", "model", p.embedModel, "error", err)
		return nil, fmt.Errorf("llm: embed: %w", err)
	}
	vectors := make([][]float32, 0, len(resp.Data))
	for _, data := range resp.Data {
		vectors = append(vectors, data.Embedding)
	}
	return vectors, nil
}

func (p *InferenceProvider) Name() string {
	return "inference"
}

func wireRole(role llm.Role) (string, error) {
	switch role {
	case llm.RoleSystem:
		return openai.ChatMessageRoleSystem, nil
	case llm.RoleUser:
		return openai.ChatMessageRoleUser, nil
	case llm.RoleAssistant:
		return openai.ChatMessageRoleAssistant, nil
	}
	return "", fmt.Errorf("llm: unsupported role %q", role)
}

// FromEnv returns a provider factory configured from the environment. When
// no API token is present the factory hands out the deterministic local
// provider so the rest of the stack keeps working in development.
func FromEnv() llm.Factory {
	logger := common.Logger()
	token := strings.TrimSpace(os.Getenv("HF_API_TOKEN"))
	opts := Options{
		Token:      token,
		Endpoint:   strings.TrimSpace(os.Getenv("LEOCHAT_INFERENCE_ENDPOINT")),
		EmbedModel: strings.TrimSpace(os.Getenv("LEOCHAT_EMBED_MODEL")),
	}
	if timeoutStr := strings.TrimSpace(os.Getenv("LEOCHAT_INFERENCE_TIMEOUT")); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			logger.Warn("llm: invalid LEOCHAT_INFERENCE_TIMEOUT, using default", "value", timeoutStr, "error", err)
		} else {
			opts.Timeout = timeout
		}
	}
	if token == "" {
		logger.Warn("llm: HF_API_TOKEN not set; using local provider")
		return func(llm.ModelConfig) (llm.Provider, error) {
			return NewLocalProvider(), nil
		}
	}
	return func(cfg llm.ModelConfig) (llm.Provider, error) {
		return NewInferenceProvider(cfg.Model, opts), nil
	}
}
