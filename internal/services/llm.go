package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"pdfchat-backend/internal/config"
)

var (
	ErrMissingLLMURL = errors.New("please set the PDFCHAT_LLM_URL environment variable")
	ErrMissingAPIKey = errors.New("missing API key")
)

// EndpointLLM calls a self-hosted text generation endpoint that accepts
// {"prompt", "max_new_tokens"} and answers {"message"}. It implements llms.Model.
type EndpointLLM struct {
	url          string
	maxNewTokens int
	client       *http.Client
}

type endpointRequest struct {
	Prompt       string `json:"prompt"`
	MaxNewTokens int    `json:"max_new_tokens"`
}

type endpointResponse struct {
	Message *string `json:"message"`
}

func NewEndpointLLM(url string, maxNewTokens int, timeout time.Duration) *EndpointLLM {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &EndpointLLM{
		url:          url,
		maxNewTokens: maxNewTokens,
		client:       &http.Client{Timeout: timeout},
	}
}

func (e *EndpointLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, e, prompt, options...)
}

func (e *EndpointLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	maxTokens := e.maxNewTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	message, err := e.generate(ctx, flattenMessages(messages), maxTokens)
	if err != nil {
		return nil, err
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: message}},
	}, nil
}

func (e *EndpointLLM) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if e.url == "" {
		return "", ErrMissingLLMURL
	}

	data, err := json.Marshal(endpointRequest{Prompt: prompt, MaxNewTokens: maxTokens})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out endpointResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode llm response: %w", err)
	}
	if out.Message == nil {
		return "", errors.New("llm response has no message field")
	}
	return *out.Message, nil
}

// flattenMessages joins the text parts of all messages into one prompt.
func flattenMessages(messages []llms.MessageContent) string {
	var parts []string
	for _, m := range messages {
		for _, p := range m.Parts {
			if t, ok := p.(llms.TextContent); ok {
				parts = append(parts, t.Text)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// NewLLM builds the text generation model selected by PDFCHAT_LLM_PROVIDER.
func NewLLM(ctx context.Context, cfg *config.Config) (llms.Model, func() error, error) {
	noop := func() error { return nil }

	switch cfg.LLMProvider {
	case config.ProviderEndpoint, "":
		return NewEndpointLLM(cfg.LLMURL, cfg.MaxNewTokens, 0), noop, nil

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, fmt.Errorf("%w: please set the OPENAI_API_KEY environment variable", ErrMissingAPIKey)
		}
		model, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("create openai model: %w", err)
		}
		return model, noop, nil

	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, nil, fmt.Errorf("%w: please set the GEMINI_API_KEY environment variable", ErrMissingAPIKey)
		}
		model, err := NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.MaxNewTokens)
		if err != nil {
			return nil, nil, err
		}
		return model, model.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}
