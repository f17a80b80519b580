// Package vectorstore holds the storage backends for embedded document chunks.
package vectorstore

import (
	"context"
	"errors"

	"pdfchat-backend/internal/models"
)

var (
	ErrInvalidDimension  = errors.New("invalid dimension")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrLengthMismatch    = errors.New("chunks and vectors length mismatch")
)

// Storage persists chunk vectors and supports similarity search scoped to one document.
type Storage interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int, documentID string) ([]models.SearchResult, error)
	HasDocument(ctx context.Context, documentID string) (bool, error)
	DeleteDocument(ctx context.Context, documentID string) error
}
