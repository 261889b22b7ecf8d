package store

import (
	"context"
	"maps"
	"sync"

	"landtrust/internal/settings/models"
	"landtrust/pkg/platform/sentinel"
)

// InMemoryStore keeps settings in a map. Used in development and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	settings map[string]models.Setting
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{settings: make(map[string]models.Setting)}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*models.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	setting, ok := s.settings[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &setting, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, setting *models.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[setting.Key] = *setting
	return nil
}

// Snapshot implements tx.Snapshotter.
func (s *InMemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.settings)
}

func (s *InMemoryStore) Restore(snapshot any) {
	settings, ok := snapshot.(map[string]models.Setting)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}
