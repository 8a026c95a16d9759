// ABOUTME: Memory store adapter: embed-and-upsert, similarity query, delete/expire
// ABOUTME: Serializes writes behind a mutex while queries run concurrently
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ratatoskr-ai/ratatoskr/internal/charm"
	"github.com/ratatoskr-ai/ratatoskr/internal/errs"
	"github.com/ratatoskr-ai/ratatoskr/internal/models"
)

// Embedder turns text into a fixed-dimension vector
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// KV is the storage surface the store needs; satisfied by *charm.Client
type KV interface {
	SetJSON(key string, value interface{}) error
	GetJSON(key string, dest interface{}) error
	Delete(key string) error
	ListKeys(prefix string) ([]string, error)
}

// Store manages long-term memory records. Upserts are serialized relative to
// each other; queries run concurrently with each other and with a pending
// upsert (each record is written atomically as one JSON value, so a read
// sees either the pre- or post-upsert state).
type Store struct {
	kv        KV
	embedder  Embedder
	dimension int

	writeMu chan struct{} // single-writer token for upsert/delete/expire
}

// NewStore creates a memory store over the given KV backend and embedder.
// dimension is the embedding dimensionality, fixed for the process lifetime.
func NewStore(kv KV, embedder Embedder, dimension int) *Store {
	s := &Store{
		kv:        kv,
		embedder:  embedder,
		dimension: dimension,
		writeMu:   make(chan struct{}, 1),
	}
	s.writeMu <- struct{}{}
	return s
}

// acquireWrite takes the writer token, honoring cancellation while queued
func (s *Store) acquireWrite(ctx context.Context) error {
	select {
	case <-s.writeMu:
		return nil
	case <-ctx.Done():
		if e := errs.FromContext(ctx, "memory upsert"); e != nil {
			return e
		}
		return ctx.Err()
	}
}

func (s *Store) releaseWrite() {
	s.writeMu <- struct{}{}
}

// Upsert embeds text and stores it as a new memory record. The only mutating
// operation; safe to call concurrently with Query.
func (s *Store) Upsert(ctx context.Context, text string, turnID int64) (*models.MemoryRecord, error) {
	vector, err := s.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		if e := errs.FromContext(ctx, "memory upsert"); e != nil {
			return nil, e
		}
		return nil, errs.New(errs.KindEmbeddingFailure, "embedding text for upsert", err)
	}
	if len(vector) != s.dimension {
		return nil, errs.New(errs.KindEmbeddingFailure,
			fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", s.dimension, len(vector)), nil)
	}

	record := models.MemoryRecord{
		ID:        models.NewMemoryID(),
		Text:      text,
		Vector:    vector,
		TurnID:    turnID,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.acquireWrite(ctx); err != nil {
		return nil, err
	}
	defer s.releaseWrite()

	if err := s.kv.SetJSON(charm.MemoryKey(record.ID), record); err != nil {
		return nil, errs.New(errs.KindStoreUnavailable, "storing memory record", err)
	}
	return &record, nil
}

// Query embeds text and returns the k nearest records, most similar first,
// ties broken by most-recent timestamp. An empty store yields an empty
// sequence, not an error.
func (s *Store) Query(ctx context.Context, text string, k int) ([]models.MemorySearchResult, error) {
	if k <= 0 {
		return nil, errs.New(errs.KindInvalidArgument,
			fmt.Sprintf("k must be a positive integer, got %d", k), nil)
	}

	queryVector, err := s.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		if e := errs.FromContext(ctx, "memory query"); e != nil {
			return nil, e
		}
		return nil, errs.New(errs.KindEmbeddingFailure, "embedding query text", err)
	}

	keys, err := s.kv.ListKeys(charm.MemoryPrefix)
	if err != nil {
		return nil, errs.New(errs.KindStoreUnavailable, "listing memory records", err)
	}

	results := make([]models.MemorySearchResult, 0, len(keys))
	for _, key := range keys {
		var record models.MemoryRecord
		if err := s.kv.GetJSON(key, &record); err != nil {
			// Record deleted between list and read; skip
			continue
		}
		results = append(results, models.MemorySearchResult{
			Record:     record,
			Similarity: cosineSimilarity(queryVector, record.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Record.CreatedAt.After(results[j].Record.CreatedAt)
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Delete removes a memory record by id
func (s *Store) Delete(ctx context.Context, recordID string) error {
	if recordID == "" {
		return errs.New(errs.KindInvalidArgument, "record id must not be empty", nil)
	}
	if err := s.acquireWrite(ctx); err != nil {
		return err
	}
	defer s.releaseWrite()

	if err := s.kv.Delete(charm.MemoryKey(recordID)); err != nil {
		return errs.New(errs.KindStoreUnavailable, "deleting memory record", err)
	}
	return nil
}

// Expire removes all records created before the cutoff and reports how many
// were removed
func (s *Store) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	if err := s.acquireWrite(ctx); err != nil {
		return 0, err
	}
	defer s.releaseWrite()

	keys, err := s.kv.ListKeys(charm.MemoryPrefix)
	if err != nil {
		return 0, errs.New(errs.KindStoreUnavailable, "listing memory records", err)
	}

	removed := 0
	for _, key := range keys {
		var record models.MemoryRecord
		if err := s.kv.GetJSON(key, &record); err != nil {
			continue
		}
		if record.CreatedAt.Before(cutoff) {
			if err := s.kv.Delete(key); err != nil {
				return removed, errs.New(errs.KindStoreUnavailable, "expiring memory record", err)
			}
			removed++
		}
	}
	return removed, nil
}

// cosineSimilarity calculates cosine similarity between two vectors
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
