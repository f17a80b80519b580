package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestChatHistory_JSONRoundTrip(t *testing.T) {
	h, err := NewChatHistory([][]string{
		{"What is this paper about?", "Transformers."},
		{"日本語で答えて", "はい、わかりました。"},
		{"Pending question"},
	})
	if err != nil {
		t.Fatalf("NewChatHistory returned error: %v", err)
	}

	raw, err := h.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON returned error: %v", err)
	}
	if !strings.Contains(string(raw), "日本語で答えて") {
		t.Errorf("expected non-ASCII text to be left unescaped: %s", raw)
	}
	if !strings.Contains(string(raw), `"response": null`) {
		t.Errorf("expected pending response to be null: %s", raw)
	}

	var decoded ChatHistory
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}

	want := h.Chats()
	got := decoded.Chats()
	if len(got) != len(want) {
		t.Fatalf("expected %d chats, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Query != want[i].Query {
			t.Errorf("chat %d: query %q, want %q", i, got[i].Query, want[i].Query)
		}
		if (got[i].Response == nil) != (want[i].Response == nil) {
			t.Errorf("chat %d: response nil mismatch", i)
			continue
		}
		if got[i].ResponseText() != want[i].ResponseText() {
			t.Errorf("chat %d: response %q, want %q", i, got[i].ResponseText(), want[i].ResponseText())
		}
	}
}

func TestChatHistory_EmptyToJSON(t *testing.T) {
	raw, err := (&ChatHistory{}).ToJSON()
	if err != nil {
		t.Fatalf("ToJSON returned error: %v", err)
	}
	if string(raw) != "[]" {
		t.Errorf("expected [], got %s", raw)
	}
}

func TestNewChatHistory_RejectsMalformedPair(t *testing.T) {
	_, err := NewChatHistory([][]string{{"q", "a", "extra"}})
	if err == nil {
		t.Fatal("expected error for a 3-element pair")
	}

	if _, err := NewChatHistory([][]string{{}}); err == nil {
		t.Error("expected error for an empty pair")
	}
}

func TestChatHistory_At(t *testing.T) {
	h := &ChatHistory{}
	if _, ok := h.At(-1); ok {
		t.Error("At(-1) on empty history should report false")
	}

	h.Add(NewChat("first", "1"))
	h.Add(NewChat("second", "2"))

	last, ok := h.At(-1)
	if !ok || last.Query != "second" {
		t.Errorf("At(-1) = %+v, %v; want second", last, ok)
	}
	first, ok := h.At(-2)
	if !ok || first.Query != "first" {
		t.Errorf("At(-2) = %+v, %v; want first", first, ok)
	}
	if _, ok := h.At(-3); ok {
		t.Error("At(-3) should be out of range")
	}
	if _, ok := h.At(2); ok {
		t.Error("At(2) should be out of range")
	}
}

func TestChatHistory_LastResponseOnEmptyHistory(t *testing.T) {
	h := &ChatHistory{}
	h.ClearLastResponse()
	h.AppendToLastResponse("ignored")

	if h.Len() != 0 {
		t.Errorf("expected empty history, got %d chats", h.Len())
	}
}

func TestChatHistory_ReplayLastResponse(t *testing.T) {
	h := &ChatHistory{}
	h.Add(Chat{Query: "q"})

	h.AppendToLastResponse("Hel")
	h.AppendToLastResponse("lo")
	if last, _ := h.Last(); last.ResponseText() != "Hello" {
		t.Errorf("expected Hello, got %q", last.ResponseText())
	}

	h.ClearLastResponse()
	last, _ := h.Last()
	if last.Response == nil || *last.Response != "" {
		t.Errorf("expected cleared response to be empty string, got %v", last.Response)
	}
}

func TestChatHistory_CloneIsIndependent(t *testing.T) {
	h := &ChatHistory{}
	h.Add(NewChat("q", "a"))

	c := h.Clone()
	c.AppendToLastResponse("b")

	if last, _ := h.Last(); last.ResponseText() != "a" {
		t.Errorf("original changed after editing clone: %q", last.ResponseText())
	}
}
