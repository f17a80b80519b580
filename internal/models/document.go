package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusIndexed    = "indexed"
	DocumentStatusFailed     = "failed"
	// Ready documents are answered without an index (echo and inject pipelines)
	DocumentStatusReady       = "ready"
	DocumentStatusUnsupported = "unsupported"
)

// Document is an uploaded file and the text extracted from it.
type Document struct {
	ID        string    `json:"id"` // content hash of Text, shared by identical uploads
	SessionID uuid.UUID `json:"session_id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	Ext       string    `json:"ext"`
	Text      string    `json:"text,omitempty"`
	Status    string    `json:"status"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the per-browser state: one document and one conversation.
type Session struct {
	ID       uuid.UUID    `json:"id"`
	Document *Document    `json:"document,omitempty"`
	History  *ChatHistory `json:"history"`
}

// HistoryArchive is a saved copy of a conversation.
type HistoryArchive struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	Document    string    `json:"document"`
	HistoryJSON []byte    `json:"-"`
	Turns       int       `json:"turns"`
	CreatedAt   time.Time `json:"created_at"`
}

type SupportedFormat struct {
	Extension   string `json:"extension"`
	MimeType    string `json:"mime_type"`
	Description string `json:"description"`
}
