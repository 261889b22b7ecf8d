package store

import (
	"context"
	"fmt"
	"sync"

	"landtrust/internal/identity/models"
	id "landtrust/pkg/domain"
	"landtrust/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in maps with the same uniqueness rules as
// the users table: one row per external id and per email.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User
}

func NewInMemory() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[id.UserID]*models.User)}
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		c := *u
		return &c, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByExternalID(_ context.Context, externalID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ExternalID != "" && u.ExternalID == externalID {
			c := *u
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("user id %s: %w", user.ID, sentinel.ErrAlreadyUsed)
	}
	if err := s.checkUniqueLocked(user); err != nil {
		return err
	}
	c := *user
	s.users[user.ID] = &c
	return nil
}

func (s *InMemoryUserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if err := s.checkUniqueLocked(user); err != nil {
		return err
	}
	c := *user
	s.users[user.ID] = &c
	return nil
}

func (s *InMemoryUserStore) checkUniqueLocked(user *models.User) error {
	for _, existing := range s.users {
		if existing.ID == user.ID {
			continue
		}
		if existing.Email == user.Email {
			return fmt.Errorf("email %s: %w", user.Email, sentinel.ErrAlreadyUsed)
		}
		if user.ExternalID != "" && existing.ExternalID == user.ExternalID {
			return fmt.Errorf("external id: %w", sentinel.ErrAlreadyUsed)
		}
	}
	return nil
}

// Count is used by tests to assert that resolution did not create rows.
func (s *InMemoryUserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *InMemoryUserStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[id.UserID]models.User, len(s.users))
	for k, v := range s.users {
		snap[k] = *v
	}
	return snap
}

func (s *InMemoryUserStore) Restore(snapshot any) {
	snap, ok := snapshot.(map[id.UserID]models.User)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[id.UserID]*models.User, len(snap))
	for k, v := range snap {
		u := v
		s.users[k] = &u
	}
}
