package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/iconidentify/vidgrab/internal/domain"
)

// MemoryIndex implements ArtifactIndex in process memory.
type MemoryIndex struct {
	mu        sync.RWMutex
	artifacts map[domain.JobID]domain.Artifact
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{artifacts: make(map[domain.JobID]domain.Artifact)}
}

func (m *MemoryIndex) Put(ctx context.Context, a domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[a.JobID] = a
	return nil
}

func (m *MemoryIndex) Get(ctx context.Context, id domain.JobID) (*domain.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.artifacts[id]
	if !ok {
		return nil, domain.ErrArtifactNotFound
	}
	return &a, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, id domain.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.artifacts, id)
	return nil
}

func (m *MemoryIndex) List(ctx context.Context) ([]domain.Artifact, error) {
	m.mu.RLock()
	out := make([]domain.Artifact, 0, len(m.artifacts))
	for _, a := range m.artifacts {
		out = append(out, a)
	}
	m.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryIndex) Close() error { return nil }

func sortNewestFirst(list []domain.Artifact) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].JobID > list[j].JobID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
