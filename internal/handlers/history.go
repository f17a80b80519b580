package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pdfchat-backend/internal/middleware"
	"pdfchat-backend/internal/repository"
)

// Download serves the session's history.json as an attachment.
func (h *ChatHandler) Download(w http.ResponseWriter, r *http.Request) {
	path := h.historyPath(middleware.GetSessionID(r.Context()))
	if _, err := os.Stat(path); err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No conversation has been saved yet", r))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.historyFile+`"`)
	http.ServeFile(w, r, path)
}

// Archive returns an archived conversation owned by the current session.
func (h *ChatHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResp("NOT_CONFIGURED", "History archives are disabled", r))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid archive ID", r))
		return
	}

	archive, err := h.archives.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrArchiveNotFound) || (err == nil && archive.SessionID != middleware.GetSessionID(r.Context())) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Archive not found", r))
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.historyFile+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(archive.HistoryJSON)
}
