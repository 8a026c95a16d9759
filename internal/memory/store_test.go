// ABOUTME: Tests for the memory store adapter over a fake KV backend
// ABOUTME: Covers upsert/query semantics, ordering, tie-breaks, and error kinds

package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ratatoskr-ai/ratatoskr/internal/charm"
	"github.com/ratatoskr-ai/ratatoskr/internal/errs"
	"github.com/ratatoskr-ai/ratatoskr/internal/models"
)

// fakeKV stores JSON-encoded values in memory
type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet error
	failGet error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}}
}

func (f *fakeKV) SetJSON(key string, value interface{}) error {
	if f.failSet != nil {
		return f.failSet
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.data[key] = raw
	f.mu.Unlock()
	return nil
}

func (f *fakeKV) GetJSON(key string, dest interface{}) error {
	if f.failGet != nil {
		return f.failGet
	}
	f.mu.Lock()
	raw, ok := f.data[key]
	f.mu.Unlock()
	if !ok {
		return errors.New("key not found")
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeKV) Delete(key string) error {
	f.mu.Lock()
	delete(f.data, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeKV) ListKeys(prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// fakeEmbedder returns canned vectors per text, or a fallback unit vector
type fakeEmbedder struct {
	dimension int
	vectors   map[string][]float64
	fail      error
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	v := make([]float64, f.dimension)
	v[0] = 1
	return v, nil
}

// seed writes a record straight into the KV, bypassing the embedder
func seed(t *testing.T, kv *fakeKV, id string, vector []float64, text string, createdAt time.Time) {
	t.Helper()
	record := models.MemoryRecord{
		ID:        id,
		Text:      text,
		Vector:    vector,
		CreatedAt: createdAt,
	}
	if err := kv.SetJSON(charm.MemoryKey(id), record); err != nil {
		t.Fatalf("seeding record %s: %v", id, err)
	}
}

func TestStore_UpsertThenQuery(t *testing.T) {
	kv := newFakeKV()
	store := NewStore(kv, &fakeEmbedder{dimension: 3}, 3)

	record, err := store.Upsert(context.Background(), "the squirrel climbs", 7)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if record.ID == "" {
		t.Error("record should have an id")
	}
	if record.TurnID != 7 {
		t.Errorf("TurnID = %d, want 7", record.TurnID)
	}

	// A completed write is immediately visible to queries
	results, err := store.Query(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Record.Text != "the squirrel climbs" {
		t.Errorf("Text = %q", results[0].Record.Text)
	}
}

func TestStore_QueryOrdering(t *testing.T) {
	kv := newFakeKV()
	embedder := &fakeEmbedder{
		dimension: 3,
		vectors:   map[string][]float64{"query": {1, 0, 0}},
	}
	store := NewStore(kv, embedder, 3)

	now := time.Now().UTC()
	seed(t, kv, "far", []float64{0, 1, 0}, "orthogonal", now)
	seed(t, kv, "near", []float64{1, 0, 0}, "identical", now)
	seed(t, kv, "mid", []float64{1, 1, 0}, "diagonal", now)

	results, err := store.Query(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	wantOrder := []string{"near", "mid", "far"}
	for i, want := range wantOrder {
		if results[i].Record.ID != want {
			t.Errorf("results[%d] = %s, want %s", i, results[i].Record.ID, want)
		}
	}
	if results[0].Similarity < results[1].Similarity || results[1].Similarity < results[2].Similarity {
		t.Errorf("similarities not descending: %v, %v, %v",
			results[0].Similarity, results[1].Similarity, results[2].Similarity)
	}
}

func TestStore_QueryTieBreakByRecency(t *testing.T) {
	kv := newFakeKV()
	embedder := &fakeEmbedder{
		dimension: 3,
		vectors:   map[string][]float64{"query": {1, 0, 0}},
	}
	store := NewStore(kv, embedder, 3)

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	seed(t, kv, "old", []float64{1, 0, 0}, "older record", older)
	seed(t, kv, "new", []float64{1, 0, 0}, "newer record", newer)

	results, err := store.Query(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Record.ID != "new" {
		t.Errorf("equal similarity should rank the newer record first, got %s", results[0].Record.ID)
	}
}

func TestStore_QueryTruncatesToK(t *testing.T) {
	kv := newFakeKV()
	store := NewStore(kv, &fakeEmbedder{dimension: 3}, 3)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seed(t, kv, fmt.Sprintf("rec%d", i), []float64{1, 0, 0}, "record", now.Add(time.Duration(i)*time.Minute))
	}

	results, err := store.Query(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestStore_QueryInvalidK(t *testing.T) {
	store := NewStore(newFakeKV(), &fakeEmbedder{dimension: 3}, 3)

	for _, k := range []int{0, -1} {
		_, err := store.Query(context.Background(), "query", k)
		if errs.KindOf(err) != errs.KindInvalidArgument {
			t.Errorf("Query(k=%d) kind = %q, want %q", k, errs.KindOf(err), errs.KindInvalidArgument)
		}
	}
}

func TestStore_QueryEmptyStore(t *testing.T) {
	store := NewStore(newFakeKV(), &fakeEmbedder{dimension: 3}, 3)

	results, err := store.Query(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("Query() on empty store error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestStore_UpsertDimensionMismatch(t *testing.T) {
	embedder := &fakeEmbedder{dimension: 5}
	store := NewStore(newFakeKV(), embedder, 3)

	_, err := store.Upsert(context.Background(), "text", 1)
	if errs.KindOf(err) != errs.KindEmbeddingFailure {
		t.Errorf("kind = %q, want %q", errs.KindOf(err), errs.KindEmbeddingFailure)
	}
}

func TestStore_UpsertEmbedderFailure(t *testing.T) {
	embedder := &fakeEmbedder{dimension: 3, fail: errors.New("engine down")}
	store := NewStore(newFakeKV(), embedder, 3)

	_, err := store.Upsert(context.Background(), "text", 1)
	if errs.KindOf(err) != errs.KindEmbeddingFailure {
		t.Errorf("kind = %q, want %q", errs.KindOf(err), errs.KindEmbeddingFailure)
	}
}

func TestStore_UpsertStoreUnavailable(t *testing.T) {
	kv := newFakeKV()
	kv.failSet = errors.New("connection refused")
	store := NewStore(kv, &fakeEmbedder{dimension: 3}, 3)

	_, err := store.Upsert(context.Background(), "text", 1)
	if errs.KindOf(err) != errs.KindStoreUnavailable {
		t.Errorf("kind = %q, want %q", errs.KindOf(err), errs.KindStoreUnavailable)
	}
}

func TestStore_Delete(t *testing.T) {
	kv := newFakeKV()
	store := NewStore(kv, &fakeEmbedder{dimension: 3}, 3)

	record, err := store.Upsert(context.Background(), "to be removed", 1)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := store.Delete(context.Background(), record.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	results, err := store.Query(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("record still present after delete")
	}

	if err := store.Delete(context.Background(), ""); errs.KindOf(err) != errs.KindInvalidArgument {
		t.Errorf("Delete(\"\") kind = %q, want %q", errs.KindOf(err), errs.KindInvalidArgument)
	}
}

func TestStore_Expire(t *testing.T) {
	kv := newFakeKV()
	store := NewStore(kv, &fakeEmbedder{dimension: 3}, 3)

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seed(t, kv, "ancient", []float64{1, 0, 0}, "old", cutoff.AddDate(0, -2, 0))
	seed(t, kv, "stale", []float64{1, 0, 0}, "old", cutoff.AddDate(0, -1, 0))
	seed(t, kv, "fresh", []float64{1, 0, 0}, "new", cutoff.AddDate(0, 1, 0))

	removed, err := store.Expire(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("Expire() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	results, err := store.Query(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 1 || results[0].Record.ID != "fresh" {
		t.Errorf("expected only the fresh record to survive, got %v", results)
	}
}

func TestStore_ConcurrentUpsertAndQuery(t *testing.T) {
	kv := newFakeKV()
	store := NewStore(kv, &fakeEmbedder{dimension: 3}, 3)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Upsert(context.Background(), fmt.Sprintf("memory %d", i), int64(i)); err != nil {
				t.Errorf("Upsert() error = %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := store.Query(context.Background(), "query", 3); err != nil {
				t.Errorf("Query() error = %v", err)
			}
		}()
	}
	wg.Wait()

	results, err := store.Query(context.Background(), "query", 8)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 8 {
		t.Errorf("got %d records after concurrent upserts, want 8", len(results))
	}
}
