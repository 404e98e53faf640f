package memory

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"deputy/internal/logging"
)

// ErrUnavailable indicates the backing store could not be read or written.
// Callers must treat it as fatal for the current turn.
var ErrUnavailable = errors.New("memory store unavailable")

// Store is an embedding-backed record store. Writes are append-only and
// serialized per task ID to preserve observation ordering; queries may run
// concurrently against a snapshot.
type Store struct {
	dir      string
	embedder Embedder

	// taskWeight blends task-scoped vs conversational relevance (0..1).
	taskWeight float64

	records []*Record
	mu      sync.RWMutex

	// saveMu serializes flushes to the shared store file. Writes for
	// different tasks may proceed concurrently up to this point.
	saveMu sync.Mutex

	taskLocks  map[string]*sync.Mutex
	taskLockMu sync.Mutex
}

// NewStore opens (or creates) a store rooted at dir. Existing records are
// loaded so the query contract survives process restarts.
func NewStore(dir string, embedder Embedder, taskWeight float64) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if taskWeight <= 0 || taskWeight > 1 {
		taskWeight = 0.7
	}

	s := &Store{
		dir:        dir,
		embedder:   embedder,
		taskWeight: taskWeight,
		taskLocks:  make(map[string]*sync.Mutex),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// taskLock returns the write lock for a task ID, creating it on first use.
func (s *Store) taskLock(taskID string) *sync.Mutex {
	s.taskLockMu.Lock()
	defer s.taskLockMu.Unlock()

	lock, ok := s.taskLocks[taskID]
	if !ok {
		lock = &sync.Mutex{}
		s.taskLocks[taskID] = lock
	}
	return lock
}

// Write appends a record. The record's content is embedded if no embedding
// is present. Writes for the same task ID are serialized; the record is
// visible to queries as soon as Write returns.
func (s *Store) Write(ctx context.Context, rec *Record) error {
	if rec == nil || rec.Content == "" {
		return fmt.Errorf("record content is required")
	}

	if rec.Embedding == nil && s.embedder != nil {
		embedding, err := s.embedder.Embed(ctx, rec.Content)
		if err != nil {
			return fmt.Errorf("%w: embedding failed: %v", ErrUnavailable, err)
		}
		rec.Embedding = embedding
	}

	lock := s.taskLock(rec.TaskID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return err
	}

	logging.Debug("memory record written", "record_id", rec.ID, "task_id", rec.TaskID, "kind", string(rec.Kind))
	return nil
}

// scored pairs a record with its blended similarity score.
type scored struct {
	rec   *Record
	score float64
}

// Query returns up to k records ranked by similarity to text, highest
// first, ties broken by recency. A non-empty taskID scopes results to that
// task's records plus unscoped conversational records, blended by the
// store's task weight. An empty store yields an empty slice, never an error.
func (s *Store) Query(ctx context.Context, text, taskID string, k int) ([]*Record, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	snapshot := make([]*Record, len(s.records))
	copy(snapshot, s.records)
	s.mu.RUnlock()

	if len(snapshot) == 0 {
		return []*Record{}, nil
	}

	var queryEmbedding []float32
	if s.embedder != nil {
		embedding, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("%w: query embedding failed: %v", ErrUnavailable, err)
		}
		queryEmbedding = embedding
	}

	var results []scored
	for _, rec := range snapshot {
		weight := 1.0
		if taskID != "" {
			switch rec.TaskID {
			case taskID:
				weight = s.taskWeight
			case "":
				weight = 1 - s.taskWeight
			default:
				// Records belonging to other tasks are out of scope.
				continue
			}
		}

		score := float64(CosineSimilarity(queryEmbedding, rec.Embedding)) * weight
		results = append(results, scored{rec: rec, score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].rec.CreatedAt.After(results[j].rec.CreatedAt)
	})

	if len(results) > k {
		results = results[:k]
	}

	records := make([]*Record, len(results))
	for i, r := range results {
		records[i] = r.rec
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) storagePath() string {
	return filepath.Join(s.dir, "records.gob")
}

// save persists all records atomically (temp file + rename). Embeddings
// are stored too, so reload does not re-call the embedding API. Flushes
// are serialized: concurrent writers for different tasks would otherwise
// race on the temp file and could persist a stale snapshot.
func (s *Store) save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	persisted := make([]Record, len(s.records))
	for i, rec := range s.records {
		persisted[i] = *rec
	}
	s.mu.RUnlock()

	tmpPath := s.storagePath() + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	encoder := gob.NewEncoder(f)
	if err := encoder.Encode(persisted); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := os.Rename(tmpPath, s.storagePath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// load restores records from disk.
func (s *Store) load() error {
	f, err := os.Open(s.storagePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil // fresh store
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer f.Close()

	var persisted []Record
	decoder := gob.NewDecoder(f)
	if err := decoder.Decode(&persisted); err != nil {
		return fmt.Errorf("%w: corrupt store: %v", ErrUnavailable, err)
	}

	s.records = make([]*Record, len(persisted))
	for i := range persisted {
		s.records[i] = &persisted[i]
	}
	return nil
}
