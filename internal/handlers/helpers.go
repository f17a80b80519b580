package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"pdfchat-backend/internal/models"
	"pdfchat-backend/internal/rag"
	"pdfchat-backend/internal/repository"
	"pdfchat-backend/internal/services"
)

type sessionRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*models.Session) error) (*models.Session, error)
}

// ArchiveRepository stores conversation archives. Archiving is skipped when nil.
type ArchiveRepository interface {
	Create(ctx context.Context, a *models.HistoryArchive) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.HistoryArchive, error)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: apiError(code, message, r),
	}
}

func apiError(code, message string, r *http.Request) models.APIError {
	return models.APIError{
		Code:      code,
		Message:   message,
		RequestID: r.Header.Get("X-Request-ID"),
	}
}

// classifyError maps service errors to an HTTP status and error code.
func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, services.ErrEmptyQuery):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, repository.ErrSessionNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Session not found"
	case errors.Is(err, rag.ErrMissingEmbeddingKey),
		errors.Is(err, services.ErrMissingLLMURL),
		errors.Is(err, services.ErrMissingAPIKey):
		return http.StatusServiceUnavailable, "NOT_CONFIGURED", err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT", "Request was cancelled"
	default:
		return http.StatusBadGateway, "UPSTREAM_ERROR", "Upstream request failed"
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "code", code, "error", err)
	}
	writeJSON(w, status, errorResp(code, message, r))
}

// publicDocument strips the extracted text from API responses.
func publicDocument(doc *models.Document) *models.Document {
	if doc == nil {
		return nil
	}
	out := *doc
	out.Text = ""
	out.Path = ""
	return &out
}
