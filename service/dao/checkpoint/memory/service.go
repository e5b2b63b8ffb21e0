package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/finclose/finclose/runtime/execution"
	"github.com/finclose/finclose/service/dao"
)

// Service implements an in-memory, thread-safe checkpoint store. Checkpoints
// are persisted as JSON snapshots so a later mutation of the live State never
// leaks into an already saved checkpoint.
type Service struct {
	checkpoints map[string][]byte
	mux         sync.RWMutex
}

var _ dao.Service[string, execution.Checkpoint] = (*Service)(nil)

// New creates an empty in-memory checkpoint store.
func New() *Service {
	return &Service{checkpoints: map[string][]byte{}}
}

// Save replaces the checkpoint stored under the thread id.
func (s *Service) Save(_ context.Context, c *execution.Checkpoint) error {
	if c == nil {
		return dao.ErrNilEntity
	}
	if c.ThreadID == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint %s: %w", c.ThreadID, err)
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.checkpoints[c.ThreadID] = data
	return nil
}

// Load returns the checkpoint for a thread id, dao.ErrNotFound when absent.
func (s *Service) Load(_ context.Context, threadID string) (*execution.Checkpoint, error) {
	if threadID == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	data, ok := s.checkpoints[threadID]
	s.mux.RUnlock()
	if !ok {
		return nil, dao.ErrNotFound
	}
	checkpoint := &execution.Checkpoint{}
	if err := json.Unmarshal(data, checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", threadID, err)
	}
	return checkpoint, nil
}

// Delete evicts a checkpoint.
func (s *Service) Delete(_ context.Context, threadID string) error {
	if threadID == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.checkpoints[threadID]; !ok {
		return dao.ErrNotFound
	}
	delete(s.checkpoints, threadID)
	return nil
}

// List returns all stored checkpoints.
func (s *Service) List(_ context.Context) ([]*execution.Checkpoint, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]*execution.Checkpoint, 0, len(s.checkpoints))
	for threadID, data := range s.checkpoints {
		checkpoint := &execution.Checkpoint{}
		if err := json.Unmarshal(data, checkpoint); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", threadID, err)
		}
		out = append(out, checkpoint)
	}
	return out, nil
}
