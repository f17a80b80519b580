package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pdfchat-backend/internal/middleware"
	"pdfchat-backend/internal/models"
	"pdfchat-backend/internal/rag"
	"pdfchat-backend/internal/services"
)

const maxUploadSize = 50 * 1024 * 1024

type textExtractor interface {
	OpenFile(path string) (string, error)
	SupportedFormats() []models.SupportedFormat
}

type jobRepository interface {
	Create(ctx context.Context, j *models.Job) error
}

// Enqueuer hands a job to the background workers.
type Enqueuer func(ctx context.Context, job *models.Job) error

type DocumentHandler struct {
	sessions    sessionRepository
	jobs        jobRepository
	enqueue     Enqueuer
	extractor   textExtractor
	storagePath string
	indexed     bool
	examples    []services.Example
}

// NewDocumentHandler builds the upload handler. When indexed is set, uploads
// are queued for embedding.
func NewDocumentHandler(sessions sessionRepository, jobs jobRepository, enqueue Enqueuer, extractor textExtractor, storagePath string, indexed bool) *DocumentHandler {
	return &DocumentHandler{
		sessions:    sessions,
		jobs:        jobs,
		enqueue:     enqueue,
		extractor:   extractor,
		storagePath: storagePath,
		indexed:     indexed,
	}
}

// WithExamples sets the preset examples LoadExample can attach.
func (h *DocumentHandler) WithExamples(examples []services.Example) *DocumentHandler {
	h.examples = examples
	return h
}

func (h *DocumentHandler) SupportedFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"formats": h.extractor.SupportedFormats(),
	})
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxUploadSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 50MB limit", r))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	sessionID := middleware.GetSessionID(r.Context())
	path, err := h.store(sessionID, header.Filename, file)
	if err != nil {
		slog.Error("failed to store upload", "file", header.Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}

	h.attach(w, r, sessionID, header.Filename, path)
}

// LoadExample attaches the document of a preset example to the session, the
// same way an upload of that file would.
func (h *DocumentHandler) LoadExample(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= len(h.examples) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Example not found", r))
		return
	}
	example := h.examples[index]

	src, err := os.Open(example.File)
	if err != nil {
		slog.Warn("example document unavailable", "file", example.File, "error", err)
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Example document not found", r))
		return
	}
	defer src.Close()

	sessionID := middleware.GetSessionID(r.Context())
	filename := filepath.Base(example.File)
	path, err := h.store(sessionID, filename, src)
	if err != nil {
		slog.Error("failed to store example", "file", example.File, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}

	h.attach(w, r, sessionID, filename, path)
}

// store copies src into the session's storage directory under a fresh name
// that keeps the original extension.
func (h *DocumentHandler) store(sessionID uuid.UUID, filename string, src io.Reader) (string, error) {
	dir := filepath.Join(h.storagePath, sessionID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, uuid.New().String()+strings.ToLower(filepath.Ext(filename)))
	if err := saveUpload(path, src); err != nil {
		return "", err
	}
	return path, nil
}

// attach extracts the stored file, makes it the session's document and, for
// indexed pipelines, queues it for embedding.
func (h *DocumentHandler) attach(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID, filename, path string) {
	text, err := h.extractor.OpenFile(path)
	if err != nil {
		slog.Warn("text extraction failed", "file", filename, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("EXTRACTION_FAILED", "Could not read text from the document", r))
		return
	}

	doc := &models.Document{
		ID:        rag.DocumentID(text),
		SessionID: sessionID,
		Filename:  filename,
		Path:      path,
		Ext:       strings.ToLower(filepath.Ext(filename)),
		Text:      text,
		Status:    models.DocumentStatusReady,
		CreatedAt: time.Now().UTC(),
	}
	switch {
	case text == services.UnsupportedFormatWarning:
		doc.Status = models.DocumentStatusUnsupported
	case h.indexed:
		doc.Status = models.DocumentStatusPending
	}

	_, err = h.sessions.Update(r.Context(), sessionID, func(s *models.Session) error {
		s.Document = doc
		return nil
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"document": publicDocument(doc),
	}

	if doc.Status == models.DocumentStatusPending {
		job := &models.Job{
			SessionID:  sessionID,
			Type:       models.JobTypeDocumentIngest,
			DocumentID: doc.ID,
		}
		err := h.jobs.Create(r.Context(), job)
		if err != nil {
			slog.Error("failed to create ingest job", "error", err)
		} else if err = h.enqueue(r.Context(), job); err != nil {
			slog.Error("failed to enqueue ingest job", "job_id", job.ID, "error", err)
		}

		if err != nil {
			// No worker will pick the document up; chat indexes it on first use.
			doc.Status = models.DocumentStatusReady
			_, err = h.sessions.Update(r.Context(), sessionID, func(s *models.Session) error {
				if s.Document != nil && s.Document.ID == doc.ID {
					s.Document.Status = models.DocumentStatusReady
				}
				return nil
			})
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			resp["document"] = publicDocument(doc)
		} else {
			resp["job_id"] = job.ID
		}
	}

	slog.Info("document attached", "session_id", sessionID, "document_id", doc.ID, "file", filename, "status", doc.Status)
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *DocumentHandler) Current(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if session.Document == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", services.NoDocumentMessage, r))
		return
	}
	writeJSON(w, http.StatusOK, publicDocument(session.Document))
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
