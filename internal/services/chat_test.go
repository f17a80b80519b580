package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"pdfchat-backend/internal/config"
	"pdfchat-backend/internal/models"
)

type stubLLM struct {
	prompts []string
	answer  string
	err     error
}

func (s *stubLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func (s *stubLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.prompts = append(s.prompts, flattenMessages(messages))
	if s.err != nil {
		return nil, s.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s.answer}}}, nil
}

type stubRetriever struct {
	chunks []string
	calls  int
}

func (s *stubRetriever) Retrieve(ctx context.Context, query, documentID, text string) ([]string, error) {
	s.calls++
	return s.chunks, nil
}

func testDocument(text string) *models.Document {
	return &models.Document{ID: "doc-1", Filename: "sample.pdf", Text: text}
}

func TestAnswer_Echo(t *testing.T) {
	llm := &stubLLM{}
	svc := NewChatService(config.PipelineEcho, llm, nil, nil, 0)

	answer, err := svc.Answer(context.Background(), "こんにちは", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "こんにちは" {
		t.Errorf("expected echo, got %q", answer)
	}
	if len(llm.prompts) != 0 {
		t.Error("echo pipeline must not call the model")
	}
}

func TestAnswer_NoDocument(t *testing.T) {
	llm := &stubLLM{answer: "x"}
	svc := NewChatService(config.PipelineRAG, llm, &stubRetriever{}, nil, 0)

	answer, err := svc.Answer(context.Background(), "質問", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != NoDocumentMessage {
		t.Errorf("expected no-document message, got %q", answer)
	}
}

func TestAnswer_UnsupportedDocumentReplaysWarning(t *testing.T) {
	llm := &stubLLM{answer: "x"}
	svc := NewChatService(config.PipelineInject, llm, nil, nil, 0)

	answer, err := svc.Answer(context.Background(), "質問", testDocument(UnsupportedFormatWarning))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != UnsupportedFormatWarning {
		t.Errorf("expected warning, got %q", answer)
	}
	if len(llm.prompts) != 0 {
		t.Error("model must not be called for unsupported documents")
	}
}

func TestAnswer_InjectUsesWholeDocument(t *testing.T) {
	llm := &stubLLM{answer: "午後二時からです"}
	svc := NewChatService(config.PipelineInject, llm, nil, nil, 0)

	answer, err := svc.Answer(context.Background(), "面会時間は？", testDocument("面会時間は午後二時から。"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "午後二時からです" {
		t.Errorf("unexpected answer %q", answer)
	}

	prompt := llm.prompts[0]
	for _, want := range []string{"【文脈】\n面会時間は午後二時から。", "【質問】\n面会時間は？", "【答え】"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected %q in prompt:\n%s", want, prompt)
		}
	}
}

func TestAnswer_RAGJoinsChunks(t *testing.T) {
	llm := &stubLLM{answer: "ok"}
	retriever := &stubRetriever{chunks: []string{"chunk one", "chunk two"}}
	svc := NewChatService(config.PipelineRAG, llm, retriever, nil, 0)

	if _, err := svc.Answer(context.Background(), "q", testDocument("text")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retriever.calls != 1 {
		t.Errorf("expected one retrieval, got %d", retriever.calls)
	}
	if !strings.Contains(llm.prompts[0], "chunk one\n\nchunk two") {
		t.Errorf("expected chunks joined by a blank line:\n%s", llm.prompts[0])
	}
}

func TestAnswer_ModelError(t *testing.T) {
	llm := &stubLLM{err: errors.New("down")}
	svc := NewChatService(config.PipelineInject, llm, nil, nil, 0)

	if _, err := svc.Answer(context.Background(), "q", testDocument("text")); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnswer_EmptyQuery(t *testing.T) {
	svc := NewChatService(config.PipelineEcho, nil, nil, nil, 0)
	if _, err := svc.Answer(context.Background(), "  ", nil); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestRespond_AppendsWithoutMutatingInput(t *testing.T) {
	svc := NewChatService(config.PipelineEcho, nil, nil, nil, 0)
	history, _ := models.NewChatHistory([][]string{{"前の質問", "前の答え"}})

	next, answer, err := svc.Respond(context.Background(), history, "新しい質問", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "新しい質問" {
		t.Errorf("unexpected answer %q", answer)
	}
	if history.Len() != 1 {
		t.Errorf("input history mutated: %d entries", history.Len())
	}
	if next.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", next.Len())
	}
	last, _ := next.Last()
	if last.Query != "新しい質問" || last.ResponseText() != "新しい質問" {
		t.Errorf("unexpected last chat %+v", last)
	}
}

func TestReplay_EmitsOneSnapshotPerRune(t *testing.T) {
	history := &models.ChatHistory{}
	history.Add(models.NewChat("q", "日本a"))

	var snapshots []string
	err := Replay(context.Background(), history, time.Microsecond, func(h *models.ChatHistory) error {
		last, _ := h.Last()
		snapshots = append(snapshots, last.ResponseText())
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"日", "日本", "日本a"}
	if len(snapshots) != len(want) {
		t.Fatalf("expected %d snapshots, got %v", len(want), snapshots)
	}
	for i := range want {
		if snapshots[i] != want[i] {
			t.Errorf("snapshot %d = %q, want %q", i, snapshots[i], want[i])
		}
	}
}

func TestReplay_StopsOnCancel(t *testing.T) {
	history := &models.ChatHistory{}
	history.Add(models.NewChat("q", strings.Repeat("x", 100)))

	ctx, cancel := context.WithCancel(context.Background())
	emitted := 0
	err := Replay(ctx, history, time.Millisecond, func(h *models.ChatHistory) error {
		emitted++
		if emitted == 3 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if emitted != 3 {
		t.Errorf("expected replay to stop after 3 emits, got %d", emitted)
	}
}

func TestReplay_EmptyHistory(t *testing.T) {
	err := Replay(context.Background(), &models.ChatHistory{}, time.Millisecond, func(*models.ChatHistory) error {
		t.Fatal("emit must not be called")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
