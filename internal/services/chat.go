package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"pdfchat-backend/internal/config"
	"pdfchat-backend/internal/models"
)

// NoDocumentMessage is the answer given when a question arrives before any upload.
const NoDocumentMessage = "No document is uploaded. Please upload a document."

const DefaultReplayInterval = 10 * time.Millisecond

var ErrEmptyQuery = errors.New("query is required")

// Retriever finds the document chunks relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, query, documentID, text string) ([]string, error)
}

type ChatService struct {
	pipeline  string
	llm       llms.Model
	retriever Retriever
	rag       prompts.PromptTemplate
	inject    prompts.PromptTemplate
	interval  time.Duration
}

func NewChatService(pipeline string, llm llms.Model, retriever Retriever, preset *Preset, interval time.Duration) *ChatService {
	if preset == nil {
		preset = DefaultPreset("")
	}
	if interval <= 0 {
		interval = DefaultReplayInterval
	}
	return &ChatService{
		pipeline:  pipeline,
		llm:       llm,
		retriever: retriever,
		rag:       NewPromptTemplate(preset.PromptTemplate),
		inject:    NewPromptTemplate(preset.InjectTemplate),
		interval:  interval,
	}
}

// NewPromptTemplate builds a template over the variables context and question.
func NewPromptTemplate(tmpl string) prompts.PromptTemplate {
	return prompts.NewPromptTemplate(tmpl, []string{"context", "question"})
}

// BuildPrompt renders tmpl with the given context and question.
func BuildPrompt(tmpl prompts.PromptTemplate, context, question string) (string, error) {
	prompt, err := tmpl.Format(map[string]any{
		"context":  context,
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build prompt: %w", err)
	}
	return prompt, nil
}

func (s *ChatService) Interval() time.Duration {
	return s.interval
}

// Answer produces the full answer to query about doc. A nil doc or a
// document the loader could not read yields a fixed message, not an error.
func (s *ChatService) Answer(ctx context.Context, query string, doc *models.Document) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}

	if s.pipeline == config.PipelineEcho {
		return query, nil
	}

	if doc == nil {
		return NoDocumentMessage, nil
	}
	if doc.Text == UnsupportedFormatWarning {
		return UnsupportedFormatWarning, nil
	}

	var promptContext string
	tmpl := s.rag
	switch s.pipeline {
	case config.PipelineInject:
		promptContext = doc.Text
		tmpl = s.inject
	case config.PipelineRAG:
		if s.retriever == nil {
			return "", errors.New("retriever is not configured")
		}
		chunks, err := s.retriever.Retrieve(ctx, query, doc.ID, doc.Text)
		if err != nil {
			return "", err
		}
		promptContext = strings.Join(chunks, "\n\n")
	default:
		return "", fmt.Errorf("unknown pipeline: %s", s.pipeline)
	}

	prompt, err := BuildPrompt(tmpl, promptContext, query)
	if err != nil {
		return "", err
	}

	if s.llm == nil {
		return "", errors.New("language model is not configured")
	}

	start := time.Now()
	answer, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	slog.Info("answer generated",
		"pipeline", s.pipeline,
		"document_id", doc.ID,
		"prompt_len", len(prompt),
		"answer_len", len(answer),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return answer, nil
}

// Respond answers query and returns a copy of history with the new exchange appended.
func (s *ChatService) Respond(ctx context.Context, history *models.ChatHistory, query string, doc *models.Document) (*models.ChatHistory, string, error) {
	answer, err := s.Answer(ctx, query, doc)
	if err != nil {
		return nil, "", err
	}

	next := &models.ChatHistory{}
	if history != nil {
		next = history.Clone()
	}
	next.Add(models.NewChat(query, answer))
	slog.Debug("chat history updated", "turns", next.Len())
	return next, answer, nil
}

// Replay clears the last response and rebuilds it one rune at a time,
// calling emit with the history after every rune and sleeping interval in
// between. It stops early only when ctx is done or emit fails.
func Replay(ctx context.Context, history *models.ChatHistory, interval time.Duration, emit func(*models.ChatHistory) error) error {
	last, ok := history.Last()
	if !ok {
		return nil
	}
	answer := last.ResponseText()
	history.ClearLastResponse()

	for _, r := range answer {
		if err := ctx.Err(); err != nil {
			return err
		}
		history.AppendToLastResponse(string(r))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		if err := emit(history); err != nil {
			return err
		}
	}
	return nil
}
