package store

import (
	"context"
	"sync"
	"time"

	"github.com/mossy-p/castiq/internal/models"
)

// Memory is the in-process store used when Redis is disabled.
type Memory struct {
	mu     sync.Mutex
	online map[string]struct{}
	jobs   map[string]models.Job
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		online: make(map[string]struct{}),
		jobs:   make(map[string]models.Job),
		now:    time.Now,
	}
}

func (m *Memory) MarkOnline(ctx context.Context, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online[peerID] = struct{}{}
	return nil
}

func (m *Memory) MarkOffline(ctx context.Context, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.online, peerID)
	return nil
}

func (m *Memory) IsOnline(ctx context.Context, peerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.online[peerID]
	return ok, nil
}

func (m *Memory) SaveJob(ctx context.Context, job models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpired()
	m.jobs[job.ID] = job
	return nil
}

func (m *Memory) GetJob(ctx context.Context, id string) (models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpired()
	job, ok := m.jobs[id]
	if !ok {
		return models.Job{}, ErrJobNotFound
	}
	return job, nil
}

// evictExpired drops records older than JobTTL. Callers hold mu.
func (m *Memory) evictExpired() {
	cutoff := m.now().Add(-JobTTL)
	for id, job := range m.jobs {
		if job.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}
