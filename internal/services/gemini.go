package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/api/option"
)

const geminiConcurrentReqs = 5

// GeminiLLM adapts a Gemini generative model to llms.Model.
type GeminiLLM struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string, maxOutputTokens int) (*GeminiLLM, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	if maxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(maxOutputTokens))
	}

	rateChan := make(chan struct{}, geminiConcurrentReqs)
	for i := 0; i < geminiConcurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiLLM{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (g *GeminiLLM) Close() error {
	return g.client.Close()
}

// acquireRate blocks until a rate slot is available
func (g *GeminiLLM) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (g *GeminiLLM) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *GeminiLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g, prompt, options...)
}

func (g *GeminiLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if err := g.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer g.releaseRate()

	resp, err := g.model.GenerateContent(ctx, genai.Text(flattenMessages(messages)))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			slog.Warn("gemini stopped early", "candidate", i, "reason", cand.FinishReason.String())
		}
	}

	text := extractText(resp)
	if text == "" {
		return nil, fmt.Errorf("Gemini returned no text")
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text}},
	}, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
