package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat-backend/internal/models"
	"pdfchat-backend/internal/vectorstore"
)

func seed(t *testing.T, s *Storage) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, 2))
	chunks := []models.Chunk{
		{DocumentID: "doc-a", Index: 0, Text: "east"},
		{DocumentID: "doc-a", Index: 1, Text: "north"},
		{DocumentID: "doc-a", Index: 2, Text: "north-east"},
		{DocumentID: "doc-b", Index: 0, Text: "other east"},
	}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}, {1, 0}}
	require.NoError(t, s.Upsert(ctx, chunks, vectors))
}

func TestSearch_RanksByCosineWithinDocument(t *testing.T) {
	s, err := Open(t.TempDir(), "pdfchat")
	require.NoError(t, err)
	seed(t, s)

	results, err := s.Search(context.Background(), []float32{1, 0.1}, 2, "doc-a")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "east", results[0].Chunk.Text)
	assert.Equal(t, "north-east", results[1].Chunk.Text)
	for _, r := range results {
		assert.Equal(t, "doc-a", r.Chunk.DocumentID)
	}
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearch_DefaultTopK(t *testing.T) {
	s, err := Open(t.TempDir(), "pdfchat")
	require.NoError(t, err)
	seed(t, s)

	results, err := s.Search(context.Background(), []float32{1, 0}, 0, "")
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

func TestUpsert_ReplacesSamePosition(t *testing.T) {
	s, err := Open(t.TempDir(), "pdfchat")
	require.NoError(t, err)
	seed(t, s)

	ctx := context.Background()
	err = s.Upsert(ctx, []models.Chunk{{DocumentID: "doc-a", Index: 0, Text: "replaced"}}, [][]float32{{1, 0}})
	require.NoError(t, err)

	results, err := s.Search(ctx, []float32{1, 0}, 10, "doc-a")
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "replaced", results[0].Chunk.Text)
}

func TestUpsert_Errors(t *testing.T) {
	s, err := Open(t.TempDir(), "pdfchat")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, 3))

	err = s.Upsert(ctx, []models.Chunk{{DocumentID: "d"}}, nil)
	assert.ErrorIs(t, err, vectorstore.ErrLengthMismatch)

	err = s.Upsert(ctx, []models.Chunk{{DocumentID: "d"}}, [][]float32{{1, 2}})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	assert.ErrorIs(t, s.EnsureCollection(ctx, 0), vectorstore.ErrInvalidDimension)
}

func TestEnsureCollection_DimensionChangeWithData(t *testing.T) {
	s, err := Open(t.TempDir(), "pdfchat")
	require.NoError(t, err)
	seed(t, s)

	assert.ErrorIs(t, s.EnsureCollection(context.Background(), 3), vectorstore.ErrDimensionMismatch)
	assert.NoError(t, s.EnsureCollection(context.Background(), 2))
}

func TestOpen_ReloadsPersistedCollection(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "pdfchat")
	require.NoError(t, err)
	seed(t, s)

	reopened, err := Open(dir, "pdfchat")
	require.NoError(t, err)

	ok, err := reopened.HasDocument(context.Background(), "doc-b")
	require.NoError(t, err)
	assert.True(t, ok)

	results, err := reopened.Search(context.Background(), []float32{0, 1}, 1, "doc-a")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "north", results[0].Chunk.Text)
}

func TestDeleteDocument(t *testing.T) {
	s, err := Open(t.TempDir(), "pdfchat")
	require.NoError(t, err)
	seed(t, s)

	ctx := context.Background()
	require.NoError(t, s.DeleteDocument(ctx, "doc-a"))

	ok, err := s.HasDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.HasDocument(ctx, "doc-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{2, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 0}))
}
