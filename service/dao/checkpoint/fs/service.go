package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"

	"github.com/finclose/finclose/runtime/execution"
	"github.com/finclose/finclose/service/dao"
)

// Service implements a filesystem-backed checkpoint store, one JSON file per
// thread id under basePath. Useful when a close run has to survive a process
// restart.
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
}

var _ dao.Service[string, execution.Checkpoint] = (*Service)(nil)

// New creates a filesystem checkpoint store rooted at basePath.
func New(basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fileSystem := afs.New()
	ctx := context.Background()
	if ok, _ := fileSystem.Exists(ctx, basePath); !ok {
		if err := fileSystem.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory %s: %w", basePath, err)
		}
	}
	return &Service{basePath: basePath, fs: fileSystem}, nil
}

// Save persists a checkpoint, replacing any previous file for the thread id.
func (s *Service) Save(ctx context.Context, c *execution.Checkpoint) error {
	if c == nil {
		return dao.ErrNilEntity
	}
	if c.ThreadID == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	location := s.checkpointPath(c.ThreadID)
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save checkpoint to %s: %w", location, err)
	}
	return nil
}

// Load retrieves a checkpoint from the filesystem.
func (s *Service) Load(ctx context.Context, threadID string) (*execution.Checkpoint, error) {
	if threadID == "" {
		return nil, dao.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	location := s.checkpointPath(threadID)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check checkpoint %s: %w", location, err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", location, err)
	}
	checkpoint := &execution.Checkpoint{}
	if err := json.Unmarshal(data, checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", location, err)
	}
	return checkpoint, nil
}

// Delete removes a checkpoint file.
func (s *Service) Delete(ctx context.Context, threadID string) error {
	if threadID == "" {
		return dao.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	location := s.checkpointPath(threadID)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to check checkpoint %s: %w", location, err)
	}
	if !exists {
		return dao.ErrNotFound
	}
	if err := s.fs.Delete(ctx, location); err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", location, err)
	}
	return nil
}

// List returns every checkpoint under basePath, skipping unreadable files.
func (s *Service) List(ctx context.Context) ([]*execution.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	var checkpoints []*execution.Checkpoint
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			continue
		}
		checkpoint := &execution.Checkpoint{}
		if err := json.Unmarshal(data, checkpoint); err != nil {
			continue
		}
		checkpoints = append(checkpoints, checkpoint)
	}
	return checkpoints, nil
}

func (s *Service) checkpointPath(threadID string) string {
	return path.Join(s.basePath, fmt.Sprintf("%s.json", threadID))
}
