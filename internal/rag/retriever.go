// Package rag indexes document text into a vector store and retrieves the
// chunks most relevant to a question.
package rag

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/textsplitter"

	"pdfchat-backend/internal/config"
	"pdfchat-backend/internal/models"
	"pdfchat-backend/internal/vectorstore"
	"pdfchat-backend/internal/vectorstore/local"
	"pdfchat-backend/internal/vectorstore/qdrant"
)

// ErrMissingEmbeddingKey is returned when retrieval runs without OPENAI_API_KEY.
var ErrMissingEmbeddingKey = errors.New("please set the OPENAI_API_KEY environment variable")

// Retriever splits, embeds and searches documents. A nil embedder is allowed
// so the service can start without an API key; every call then fails with
// ErrMissingEmbeddingKey.
type Retriever struct {
	splitter textsplitter.TextSplitter
	embedder embeddings.Embedder
	store    vectorstore.Storage
	k        int
}

func NewRetriever(splitter textsplitter.TextSplitter, embedder embeddings.Embedder, store vectorstore.Storage, k int) *Retriever {
	if k <= 0 {
		k = 4
	}
	return &Retriever{
		splitter: splitter,
		embedder: embedder,
		store:    store,
		k:        k,
	}
}

// NewSplitter splits on paragraph breaks into chunks of at most size characters.
func NewSplitter(size, overlap int) textsplitter.TextSplitter {
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithSeparators([]string{"\n\n"}),
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
}

// NewEmbedder returns the OpenAI embedder, or nil when no key is configured.
func NewEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, nil
	}
	llm, err := openai.New(
		openai.WithToken(cfg.OpenAIAPIKey),
		openai.WithEmbeddingModel(cfg.OpenAIEmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}
	return embedder, nil
}

// NewStorage opens the vector store selected by QDRANT_MODE.
func NewStorage(cfg *config.Config) (vectorstore.Storage, error) {
	switch cfg.QdrantMode {
	case config.QdrantModeCloud:
		if cfg.QdrantURL == "" || cfg.QdrantAPIKey == "" {
			return nil, errors.New("please set the QDRANT_URL and QDRANT_API_KEY environment variables")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: config.CollectionName,
		}), nil
	case config.QdrantModeLocal, "":
		return local.Open(cfg.QdrantPath, config.CollectionName)
	default:
		return nil, fmt.Errorf("unknown QDRANT_MODE: %s", cfg.QdrantMode)
	}
}

// FromConfig wires the splitter, embedder and vector store selected by cfg.
func FromConfig(cfg *config.Config) (*Retriever, error) {
	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		slog.Warn("OPENAI_API_KEY is not set, retrieval will fail until it is")
	}
	store, err := NewStorage(cfg)
	if err != nil {
		return nil, err
	}
	return NewRetriever(NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap), embedder, store, cfg.RetrieveK), nil
}

// DocumentID derives a stable id from the document text.
func DocumentID(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// Split returns the chunks text would be indexed as.
func (r *Retriever) Split(documentID, text string) ([]models.Chunk, error) {
	parts, err := r.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split document: %w", err)
	}
	chunks := make([]models.Chunk, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{DocumentID: documentID, Index: len(chunks), Text: p})
	}
	return chunks, nil
}

// Index embeds and stores the document unless it is already indexed.
// It returns the number of chunks the document consists of.
func (r *Retriever) Index(ctx context.Context, documentID, text string) (int, error) {
	if r.embedder == nil {
		return 0, ErrMissingEmbeddingKey
	}

	chunks, err := r.Split(documentID, text)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	exists, err := r.store.HasDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("check index: %w", err)
	}
	if exists {
		slog.Debug("document already indexed", "document_id", documentID, "chunks", len(chunks))
		return len(chunks), nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	start := time.Now()
	vectors, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("count mismatch: got %d embeddings, want %d", len(vectors), len(chunks))
	}

	if err := r.store.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return 0, fmt.Errorf("ensure collection: %w", err)
	}
	if err := r.store.Upsert(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	slog.Info("document indexed", "document_id", documentID, "chunks", len(chunks), "duration_ms", time.Since(start).Milliseconds())
	return len(chunks), nil
}

// Retrieve returns the texts of the chunks closest to query, indexing the
// document first when needed.
func (r *Retriever) Retrieve(ctx context.Context, query, documentID, text string) ([]string, error) {
	if _, err := r.Index(ctx, documentID, text); err != nil {
		return nil, err
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.store.Search(ctx, vector, r.k, documentID)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Chunk.Text
	}
	return texts, nil
}

// Forget removes a document from the index.
func (r *Retriever) Forget(ctx context.Context, documentID string) error {
	return r.store.DeleteDocument(ctx, documentID)
}
