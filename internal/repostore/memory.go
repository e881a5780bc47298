package repostore

import (
	"context"
	"sync"

	"codewiki/internal/corerr"
	"codewiki/internal/domain"
)

// Memory is the in-memory Storage adapter (spec §4.8): a keyed collection
// behind a read-write lock; HealthCheck always succeeds.
type Memory struct {
	mu      sync.RWMutex
	records map[string]domain.Repository
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]domain.Repository)}
}

func (m *Memory) Save(_ context.Context, r domain.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r.Clone()
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (domain.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return domain.Repository{}, corerr.NotFound("repository %s not found", id)
	}
	return r.Clone(), nil
}

func (m *Memory) List(_ context.Context, ownerID string) ([]domain.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Repository
	for _, r := range m.records {
		if ownerID != "" && r.OwnerID != ownerID {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return corerr.NotFound("repository %s not found", id)
	}
	delete(m.records, id)
	return nil
}

func (m *Memory) UpdateStatus(_ context.Context, id string, status domain.RepoStatus, progress float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return corerr.NotFound("repository %s not found", id)
	}
	r.Status = status
	r.Progress = progress
	r.UpdatedAt = now()
	if status == domain.StatusCompleted {
		t := now()
		r.IndexedAt = &t
	}
	m.records[id] = r
	return nil
}

func (m *Memory) UpdateMetadata(_ context.Context, id string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return corerr.NotFound("repository %s not found", id)
	}
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	for k, v := range metadata {
		r.Metadata[k] = v
	}
	r.UpdatedAt = now()
	m.records[id] = r
	return nil
}

func (m *Memory) ListByStatus(_ context.Context, status domain.RepoStatus) ([]domain.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Repository
	for _, r := range m.records {
		if r.Status == status {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *Memory) StatusCounts(_ context.Context) (StatusCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(StatusCounts)
	for _, r := range m.records {
		counts[r.Status]++
	}
	return counts, nil
}

func (m *Memory) HealthCheck(_ context.Context) error { return nil }

var _ Storage = (*Memory)(nil)
