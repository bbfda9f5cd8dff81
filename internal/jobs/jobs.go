// Package jobs records the lifecycle of compression jobs so clients can poll
// for results.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"
)

type Kind string

const (
	KindCompress   Kind = "compress"
	KindDecompress Kind = "decompress"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Job struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Status     Status    `json:"status"`
	InputPath  string    `json:"input_path"`
	OutputPath string    `json:"output_path,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var ErrNotFound = errors.New("job not found")

type Store interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	UpdateStatus(ctx context.Context, id string, status Status, outputPath, detail string) error
}

// MemoryStore keeps jobs in process memory. It is used when no database is
// configured and in tests.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]Job
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists: " + job.ID)
	}
	now := s.now().UTC()
	job.CreatedAt, job.UpdatedAt = now, now
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status Status, outputPath, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.Status = status
	job.OutputPath = outputPath
	job.Detail = detail
	job.UpdatedAt = s.now().UTC()
	s.jobs[id] = job
	return nil
}

var _ Store = (*MemoryStore)(nil)
