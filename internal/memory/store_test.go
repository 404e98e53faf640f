package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns deterministic embeddings keyed by content so
// similarity tests do not depend on a live API.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	// Unknown text gets a vector orthogonal to everything else.
	return []float32{0, 0, 0, 1}, nil
}

func newTestStore(t *testing.T, embedder Embedder) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), embedder, 0.7)
	require.NoError(t, err)
	return store
}

func TestStoreWriteAndQuery(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"apples are red":   {1, 0, 0, 0},
		"bananas are long": {0, 1, 0, 0},
		"fruit colors":     {0.9, 0.1, 0, 0},
	}}
	store := newTestStore(t, embedder)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, NewRecord("", KindConversation, "user", "apples are red")))
	require.NoError(t, store.Write(ctx, NewRecord("", KindConversation, "user", "bananas are long")))

	records, err := store.Query(ctx, "fruit colors", "", 5)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "apples are red", records[0].Content, "most similar record first")
}

func TestStoreQueryLimit(t *testing.T) {
	store := newTestStore(t, &fakeEmbedder{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Write(ctx, NewRecord("", KindConversation, "user", strings.Repeat("x", i+1))))
	}

	records, err := store.Query(ctx, "anything", "", 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestStoreQueryEmptyStore(t *testing.T) {
	store := newTestStore(t, &fakeEmbedder{})

	records, err := store.Query(context.Background(), "anything", "", 5)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestStoreTaskScoping(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"shared topic": {1, 0, 0, 0},
	}}
	store := newTestStore(t, embedder)
	ctx := context.Background()

	taskRec := NewRecord("task-a", KindTask, "user", "shared topic")
	otherRec := NewRecord("task-b", KindTask, "user", "shared topic")
	globalRec := NewRecord("", KindConversation, "user", "shared topic")
	require.NoError(t, store.Write(ctx, taskRec))
	require.NoError(t, store.Write(ctx, otherRec))
	require.NoError(t, store.Write(ctx, globalRec))

	records, err := store.Query(ctx, "shared topic", "task-a", 10)
	require.NoError(t, err)
	require.Len(t, records, 2, "other tasks' records are out of scope")

	for _, rec := range records {
		assert.NotEqual(t, "task-b", rec.TaskID)
	}

	// With weight 0.7 the task-scoped record outranks the global one at
	// equal raw similarity.
	assert.Equal(t, "task-a", records[0].TaskID)
}

func TestStoreRecencyTieBreak(t *testing.T) {
	store := newTestStore(t, &fakeEmbedder{})
	ctx := context.Background()

	older := NewRecord("", KindConversation, "user", "first message")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := NewRecord("", KindConversation, "user", "second message")

	require.NoError(t, store.Write(ctx, older))
	require.NoError(t, store.Write(ctx, newer))

	records, err := store.Query(ctx, "query", "", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second message", records[0].Content, "equal scores break toward recency")
}

func TestStoreVisibleImmediately(t *testing.T) {
	store := newTestStore(t, &fakeEmbedder{})
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, NewRecord("", KindObservation, "tool", "tool output")))

	records, err := store.Query(ctx, "anything", "", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "tool output", records[0].Content)
}

func TestStoreReloadPersistence(t *testing.T) {
	dir := t.TempDir()
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"remember this": {1, 0, 0, 0},
	}}

	store, err := NewStore(dir, embedder, 0.7)
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), NewRecord("task-x", KindTask, "user", "remember this")))

	reopened, err := NewStore(dir, embedder, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Count())

	records, err := reopened.Query(context.Background(), "remember this", "task-x", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "remember this", records[0].Content)
	assert.NotEmpty(t, records[0].Embedding, "embeddings survive reload")
}

func TestStoreConcurrentWritesAcrossTasks(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, &fakeEmbedder{}, 0.7)
	require.NoError(t, err)
	ctx := context.Background()

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			taskID := fmt.Sprintf("task-%d", w)
			for i := 0; i < perWriter; i++ {
				rec := NewRecord(taskID, KindObservation, "tool", fmt.Sprintf("writer %d event %d", w, i))
				if err := store.Write(ctx, rec); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent write failed: %v", err)
	}
	assert.Equal(t, writers*perWriter, store.Count())

	// Every acknowledged write is durable.
	reopened, err := NewStore(dir, &fakeEmbedder{}, 0.7)
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, reopened.Count())
}

func TestStoreRejectsEmptyContent(t *testing.T) {
	store := newTestStore(t, &fakeEmbedder{})
	assert.Error(t, store.Write(context.Background(), NewRecord("", KindConversation, "user", "")))
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, float64(CosineSimilarity(a, b)), 1e-6)
	assert.InDelta(t, 0.0, float64(CosineSimilarity(a, c)), 1e-6)
	assert.Equal(t, float32(0), CosineSimilarity(a, nil))
	assert.Equal(t, float32(0), CosineSimilarity(nil, nil))
}
