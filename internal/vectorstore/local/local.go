// Package local is an on-disk vector store for single-node use: brute-force
// cosine search over an in-memory copy that is rewritten to disk on every change.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"pdfchat-backend/internal/models"
	"pdfchat-backend/internal/vectorstore"
)

type record struct {
	Chunk  models.Chunk `json:"chunk"`
	Vector []float32    `json:"vector"`
}

type snapshot struct {
	Dimension int      `json:"dimension"`
	Records   []record `json:"records"`
}

// Storage keeps one collection under dir/<collection>.json.
type Storage struct {
	mu        sync.RWMutex
	file      string
	dimension int
	records   []record
}

// Open loads the collection file if it exists.
func Open(dir, collection string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &Storage{file: filepath.Join(dir, collection+".json")}

	data, err := os.ReadFile(s.file)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode collection %s: %w", s.file, err)
	}
	s.dimension = snap.Dimension
	s.records = snap.Records
	return s, nil
}

func (s *Storage) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == dimension {
		return nil
	}
	if s.dimension != 0 && len(s.records) > 0 {
		return fmt.Errorf("%w: collection has %d, got %d", vectorstore.ErrDimensionMismatch, s.dimension, dimension)
	}
	s.dimension = dimension
	return s.persistLocked()
}

// Upsert replaces chunks with the same document ID and index.
func (s *Storage) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return vectorstore.ErrLengthMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range vectors {
		if len(v) != s.dimension {
			return vectorstore.ErrDimensionMismatch
		}
	}

	pos := make(map[models.Chunk]int)
	for i, r := range s.records {
		pos[chunkKey(r.Chunk)] = i
	}
	for i, ch := range chunks {
		rec := record{Chunk: ch, Vector: vectors[i]}
		if j, ok := pos[chunkKey(ch)]; ok {
			s.records[j] = rec
			continue
		}
		pos[chunkKey(ch)] = len(s.records)
		s.records = append(s.records, rec)
	}
	return s.persistLocked()
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int, documentID string) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 {
		topK = 4
	}

	results := make([]models.SearchResult, 0, len(s.records))
	for _, r := range s.records {
		if documentID != "" && r.Chunk.DocumentID != documentID {
			continue
		}
		results = append(results, models.SearchResult{Chunk: r.Chunk, Score: cosine(r.Vector, vector)})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *Storage) HasDocument(ctx context.Context, documentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.Chunk.DocumentID == documentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Storage) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, r := range s.records {
		if r.Chunk.DocumentID != documentID {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return s.persistLocked()
}

func (s *Storage) persistLocked() error {
	data, err := json.Marshal(snapshot{Dimension: s.dimension, Records: s.records})
	if err != nil {
		return err
	}
	tmp := s.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	return os.Rename(tmp, s.file)
}

// chunkKey identifies a chunk position regardless of its text.
func chunkKey(c models.Chunk) models.Chunk {
	return models.Chunk{DocumentID: c.DocumentID, Index: c.Index}
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
