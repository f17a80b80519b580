package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/eventsource"

	"pdfchat-backend/internal/middleware"
	"pdfchat-backend/internal/models"
	"pdfchat-backend/internal/services"
)

type chatResponder interface {
	Respond(ctx context.Context, history *models.ChatHistory, query string, doc *models.Document) (*models.ChatHistory, string, error)
	Interval() time.Duration
}

type ChatHandler struct {
	chat        chatResponder
	sessions    sessionRepository
	archives    ArchiveRepository
	storagePath string
	historyFile string
}

// NewChatHandler builds the chat handler. archives may be nil.
func NewChatHandler(chat chatResponder, sessions sessionRepository, archives ArchiveRepository, storagePath, historyFile string) *ChatHandler {
	if historyFile == "" {
		historyFile = "history.json"
	}
	return &ChatHandler{
		chat:        chat,
		sessions:    sessions,
		archives:    archives,
		storagePath: storagePath,
		historyFile: filepath.Base(historyFile),
	}
}

// historyPath is where a session's history.json is written.
func (h *ChatHandler) historyPath(sessionID uuid.UUID) string {
	return filepath.Join(h.storagePath, sessionID.String(), h.historyFile)
}

// Chat answers a question and streams the growing answer as server-sent
// events, one per character, ending with a "done" event.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", services.ErrEmptyQuery.Error(), r))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Streaming unsupported", r))
		return
	}

	sessionID := middleware.GetSessionID(r.Context())
	session, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	history, answer, err := h.chat.Respond(r.Context(), session.History, req.Query, session.Document)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	seq := 0
	send := func(ev models.ChatStreamEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		seq++
		if err := eventsource.WriteEvent(w, eventsource.Event{ID: strconv.Itoa(seq), Data: data}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	replayErr := services.Replay(r.Context(), history, h.chat.Interval(), func(hist *models.ChatHistory) error {
		return send(models.ChatStreamEvent{Type: "history", History: hist.Pairs()})
	})
	if replayErr != nil && !errors.Is(replayErr, context.Canceled) {
		slog.Warn("chat stream interrupted", "session_id", sessionID, "error", replayErr)
	}

	// The exchange is kept even when the client went away mid-stream.
	ctx := context.WithoutCancel(r.Context())
	saved, err := h.persist(ctx, sessionID, models.NewChat(req.Query, answer), session.Document)
	if err != nil {
		slog.Error("failed to persist chat", "session_id", sessionID, "error", err)
		send(models.ChatStreamEvent{Type: "error", Error: &models.APIError{
			Code:      "PERSIST_FAILED",
			Message:   "Failed to save the conversation",
			RequestID: r.Header.Get("X-Request-ID"),
		}})
		return
	}

	if replayErr == nil {
		send(models.ChatStreamEvent{Type: "done", Saved: filepath.Base(saved)})
	}
}

// persist appends chat to the stored session, rewrites history.json and
// archives the conversation when a database is configured.
func (h *ChatHandler) persist(ctx context.Context, sessionID uuid.UUID, chat models.Chat, doc *models.Document) (string, error) {
	session, err := h.sessions.Update(ctx, sessionID, func(s *models.Session) error {
		s.History.Add(chat)
		return nil
	})
	if err != nil {
		return "", err
	}

	path, err := services.SaveChatHistory(h.historyPath(sessionID), session.History)
	if err != nil {
		return "", err
	}

	if h.archives != nil {
		data, err := session.History.ToJSON()
		if err != nil {
			return "", err
		}
		archive := &models.HistoryArchive{
			SessionID:   sessionID,
			HistoryJSON: data,
			Turns:       session.History.Len(),
		}
		if doc != nil {
			archive.Document = doc.Filename
		}
		if err := h.archives.Create(ctx, archive); err != nil {
			slog.Warn("failed to archive history", "session_id", sessionID, "error", err)
		}
	}

	return path, nil
}

// History returns the conversation as [query, response] pairs.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": session.History.Pairs(),
	})
}
