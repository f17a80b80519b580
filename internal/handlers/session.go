package handlers

import (
	"net/http"

	"pdfchat-backend/internal/middleware"
	"pdfchat-backend/internal/models"
)

type SessionHandler struct {
	sessions sessionRepository
	auth     *middleware.SessionAuth
}

func NewSessionHandler(sessions sessionRepository, auth *middleware.SessionAuth) *SessionHandler {
	return &SessionHandler{sessions: sessions, auth: auth}
}

// Get returns the session with a token for the websocket.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	session, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	token, err := h.auth.GenerateToken(sessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to issue token", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": session.ID,
		"token":      token,
		"document":   publicDocument(session.Document),
		"turns":      session.History.Len(),
	})
}

// Clear forgets the document and the conversation, like the clear button.
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	_, err := h.sessions.Update(r.Context(), sessionID, func(s *models.Session) error {
		s.Document = nil
		s.History = &models.ChatHistory{}
		return nil
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
