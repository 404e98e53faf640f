package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"deputy/internal/approval"
	"deputy/internal/client"
)

// Checkpoint captures a turn suspended on an approval request, durable
// enough to resume after a process restart. Checkpoints are keyed by a
// fresh ID and deleted once their request resolves in-process.
type Checkpoint struct {
	ID           string            `json:"id"`
	Session      Session           `json:"session"`
	Input        string            `json:"input"`
	Plan         Plan              `json:"plan"`
	Observations []string          `json:"observations,omitempty"`
	Step         int               `json:"step"`
	PendingCall  approval.ToolCall `json:"pending_call"`
	CreatedAt    time.Time         `json:"created_at"`
}

// CheckpointStore persists checkpoints as JSON files under a directory.
type CheckpointStore struct {
	dir string
}

// NewCheckpointStore creates a store rooted at dir.
func NewCheckpointStore(dir string) (*CheckpointStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &CheckpointStore{dir: dir}, nil
}

func (s *CheckpointStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save persists a checkpoint and returns its ID.
func (s *CheckpointStore) Save(cp *Checkpoint) (string, error) {
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return "", err
	}

	tmpPath := s.path(cp.ID) + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", err
	}
	if err := os.Rename(tmpPath, s.path(cp.ID)); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return cp.ID, nil
}

// Load reads a checkpoint by ID.
func (s *CheckpointStore) Load(id string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, err
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint %s: %w", id, err)
	}
	return &cp, nil
}

// Delete removes a checkpoint. Deleting a missing checkpoint is not an
// error.
func (s *CheckpointStore) Delete(id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns all stored checkpoints, oldest first.
func (s *CheckpointStore) List() ([]*Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var checkpoints []*Checkpoint
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		cp, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // skip unreadable entries
		}
		checkpoints = append(checkpoints, cp)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].CreatedAt.Before(checkpoints[j].CreatedAt)
	})
	return checkpoints, nil
}

// Checkpoints returns the turns suspended by previous processes, oldest
// first. Returns an empty slice when checkpointing is disabled.
func (e *Engine) Checkpoints() ([]*Checkpoint, error) {
	if e.checkpoints == nil {
		return nil, nil
	}
	return e.checkpoints.List()
}

// ResumeTurn continues a turn that was suspended on an approval request in
// a previous process. The pending call goes back through the gate (the
// original in-process request died with that process), then the loop
// continues from the suspended step.
func (e *Engine) ResumeTurn(ctx context.Context, cp *Checkpoint) (*Response, error) {
	if e.checkpoints != nil {
		if err := e.checkpoints.Delete(cp.ID); err != nil {
			return nil, err
		}
	}

	session := cp.Session
	plan := cp.Plan
	observations := append([]string{}, cp.Observations...)

	decision := &client.Decision{
		Kind: client.KindCallTool,
		Tool: cp.PendingCall.Tool,
		Args: cp.PendingCall.Args,
	}

	obs, err := e.executeToolStep(ctx, &session, cp.Input, &plan, observations, cp.Step, decision)
	if err != nil {
		return nil, err
	}
	if err := e.observe(ctx, &session, &observations, obs); err != nil {
		return nil, err
	}

	return e.runLoop(ctx, &session, cp.Input, &plan, observations, cp.Step+1)
}
