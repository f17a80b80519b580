package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Chat is a single question/answer exchange. Response is nil until an answer exists.
type Chat struct {
	Query    string  `json:"query"`
	Response *string `json:"response"`
}

// NewChat builds a chat with a set response.
func NewChat(query, response string) Chat {
	return Chat{Query: query, Response: &response}
}

// ResponseText returns the response or "" when unset.
func (c Chat) ResponseText() string {
	if c.Response == nil {
		return ""
	}
	return *c.Response
}

// ChatHistory is the append-only conversation shown in the browser.
// Iteration order is insertion order.
type ChatHistory struct {
	chats []Chat
}

// NewChatHistory builds a history from UI pairs of [query, response].
// A pair with a single element has no response yet.
func NewChatHistory(pairs [][]string) (*ChatHistory, error) {
	h := &ChatHistory{}
	for i, p := range pairs {
		switch len(p) {
		case 1:
			h.chats = append(h.chats, Chat{Query: p[0]})
		case 2:
			h.chats = append(h.chats, NewChat(p[0], p[1]))
		default:
			return nil, fmt.Errorf("history entry %d: expected [query, response], got %d elements", i, len(p))
		}
	}
	return h, nil
}

func (h *ChatHistory) Add(chat Chat) {
	h.chats = append(h.chats, chat)
}

func (h *ChatHistory) Len() int {
	return len(h.chats)
}

// At returns the chat at index i. Negative indexes count from the end.
func (h *ChatHistory) At(i int) (Chat, bool) {
	if i < 0 {
		i += len(h.chats)
	}
	if i < 0 || i >= len(h.chats) {
		return Chat{}, false
	}
	return h.chats[i], true
}

func (h *ChatHistory) Last() (Chat, bool) {
	return h.At(-1)
}

// ClearLastResponse resets the last response to the empty string so it can be replayed.
func (h *ChatHistory) ClearLastResponse() {
	if len(h.chats) == 0 {
		return
	}
	empty := ""
	h.chats[len(h.chats)-1].Response = &empty
}

// AppendToLastResponse extends the last response, setting it if it was nil.
func (h *ChatHistory) AppendToLastResponse(s string) {
	if len(h.chats) == 0 {
		return
	}
	last := &h.chats[len(h.chats)-1]
	next := last.ResponseText() + s
	last.Response = &next
}

// Chats returns a copy of the chats in insertion order.
func (h *ChatHistory) Chats() []Chat {
	out := make([]Chat, len(h.chats))
	copy(out, h.chats)
	return out
}

// Pairs renders the history as [query, response] pairs for the chat widget.
func (h *ChatHistory) Pairs() [][]*string {
	out := make([][]*string, 0, len(h.chats))
	for _, c := range h.chats {
		q := c.Query
		var resp *string
		if c.Response != nil {
			r := *c.Response
			resp = &r
		}
		out = append(out, []*string{&q, resp})
	}
	return out
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (h *ChatHistory) Clone() *ChatHistory {
	c := &ChatHistory{chats: make([]Chat, len(h.chats))}
	for i, chat := range h.chats {
		c.chats[i] = Chat{Query: chat.Query}
		if chat.Response != nil {
			r := *chat.Response
			c.chats[i].Response = &r
		}
	}
	return c
}

func (h *ChatHistory) MarshalJSON() ([]byte, error) {
	if h.chats == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.chats)
}

func (h *ChatHistory) UnmarshalJSON(data []byte) error {
	var chats []Chat
	if err := json.Unmarshal(data, &chats); err != nil {
		return err
	}
	h.chats = chats
	return nil
}

// ToJSON renders the history.json artifact: a 4-space indented array of
// {"query", "response"} objects with non-ASCII text left unescaped.
func (h *ChatHistory) ToJSON() ([]byte, error) {
	chats := h.chats
	if chats == nil {
		chats = []Chat{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(chats); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Query string `json:"query"`
}

// ChatStreamEvent is one server-sent event of a chat turn.
type ChatStreamEvent struct {
	Type    string      `json:"type"` // "history" | "done" | "error"
	History [][]*string `json:"history,omitempty"`
	Saved   string      `json:"saved,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}
