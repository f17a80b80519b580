package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPreset(t *testing.T) {
	p := DefaultPreset("cyberagent/calm2-7b-chat")

	if len(p.Models) != 1 || p.Models[0] != "cyberagent/calm2-7b-chat" {
		t.Errorf("unexpected models %v", p.Models)
	}
	if len(p.Examples) != 2 {
		t.Errorf("expected 2 examples, got %d", len(p.Examples))
	}
	if !strings.Contains(p.ParametersNote, "Not implemented yet") {
		t.Errorf("unexpected parameters note %q", p.ParametersNote)
	}

	prompt, err := BuildPrompt(NewPromptTemplate(p.PromptTemplate), "CTX", "Q")
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	want := "以下の文脈を利用して、最後の質問に答えなさい。\n答えがわからない場合は、わからないと答えてください。\n\n【文脈】\nCTX\n\n【質問】\nQ\n\n【答え】\n"
	if prompt != want {
		t.Errorf("unexpected prompt:\n%q\nwant\n%q", prompt, want)
	}
}

func TestLoadPreset_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	content := `title: Custom
inject_template: "Doc: {{.context}} Q: {{.question}}"
examples:
  - file: data/other.pdf
    query: hello
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPreset(path, "m")
	if err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}
	if p.Title != "Custom" {
		t.Errorf("expected overridden title, got %q", p.Title)
	}
	if p.PromptTemplate != defaultRAGTemplate {
		t.Error("expected default RAG template to be kept")
	}
	if len(p.Examples) != 1 || p.Examples[0].Query != "hello" {
		t.Errorf("unexpected examples %+v", p.Examples)
	}

	prompt, err := BuildPrompt(NewPromptTemplate(p.InjectTemplate), "A", "B")
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if prompt != "Doc: A Q: B" {
		t.Errorf("unexpected prompt %q", prompt)
	}
}

func TestLoadPreset_Errors(t *testing.T) {
	if _, err := LoadPreset(filepath.Join(t.TempDir(), "missing.yaml"), "m"); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("title: [unclosed"), 0o644)
	if _, err := LoadPreset(path, "m"); err == nil {
		t.Error("expected parse error")
	}

	p, err := LoadPreset("", "m")
	if err != nil || p.Title != "Chat with PDF" {
		t.Errorf("expected default preset, got %+v, %v", p, err)
	}
}
