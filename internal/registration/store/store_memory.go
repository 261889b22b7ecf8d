package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"landtrust/internal/registration/models"
	id "landtrust/pkg/domain"
	"landtrust/pkg/platform/sentinel"
)

// InMemoryStore mirrors the Postgres schema's constraints: one registration
// per user and attachments tied to an existing registration.
type InMemoryStore struct {
	mu            sync.RWMutex
	registrations map[id.RegistrationID]*models.Registration
	attachments   []models.Attachment
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{registrations: make(map[id.RegistrationID]*models.Registration)}
}

func copyRegistration(r *models.Registration) *models.Registration {
	c := *r
	c.Attachments = nil
	return &c
}

func (s *InMemoryStore) Create(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.registrations {
		if existing.UserID == reg.UserID {
			return fmt.Errorf("registration for user %s: %w", reg.UserID, sentinel.ErrAlreadyUsed)
		}
	}
	if _, ok := s.registrations[reg.ID]; ok {
		return fmt.Errorf("registration id %s: %w", reg.ID, sentinel.ErrAlreadyUsed)
	}
	s.registrations[reg.ID] = copyRegistration(reg)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, regID id.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.registrations[regID]; ok {
		return copyRegistration(r), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByUserID(_ context.Context, userID id.UserID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.registrations {
		if r.UserID == userID {
			return copyRegistration(r), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpdateExistingProperty(_ context.Context, regID id.RegistrationID, info models.ExistingProperty, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[regID]
	if !ok {
		return sentinel.ErrNotFound
	}
	r.HasExistingProperty = info.HasExistingProperty
	r.ExistingLotNumber = info.ExistingLotNumber
	r.ExistingPropertyNotes = info.ExistingPropertyNotes
	r.UpdatedAt = at
	return nil
}

func (s *InMemoryStore) UpdateStatusIf(_ context.Context, regID id.RegistrationID, from, to models.Status, decidedAt time.Time, decidedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.registrations[regID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Status != from {
		return sentinel.ErrInvalidState
	}
	r.Status = to
	r.DecidedAt = &decidedAt
	r.DecidedBy = decidedBy
	r.UpdatedAt = decidedAt
	return nil
}

func (s *InMemoryStore) AddAttachment(_ context.Context, att *models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registrations[att.RegistrationID]; !ok {
		return sentinel.ErrNotFound
	}
	s.attachments = append(s.attachments, *att)
	return nil
}

func (s *InMemoryStore) ListAttachments(_ context.Context, regID id.RegistrationID) ([]models.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Attachment{}
	for _, a := range s.attachments {
		if a.RegistrationID == regID {
			out = append(out, a)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Attachment) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) ListPresentKinds(_ context.Context, regID id.RegistrationID) ([]models.Kind, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[models.Kind]bool{}
	kinds := []models.Kind{}
	for _, a := range s.attachments {
		if a.RegistrationID == regID && a.Kind.IsRequired() && !seen[a.Kind] {
			seen[a.Kind] = true
			kinds = append(kinds, a.Kind)
		}
	}
	return kinds, nil
}

func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter) ([]*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := []*models.Registration{}
	for _, r := range s.registrations {
		if filter.Matches(r) {
			matched = append(matched, copyRegistration(r))
		}
	}
	slices.SortFunc(matched, func(a, b *models.Registration) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if b.ID.String() > a.ID.String() {
			return 1
		}
		return -1
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

type memorySnapshot struct {
	registrations map[id.RegistrationID]models.Registration
	attachments   int
}

func (s *InMemoryStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regs := make(map[id.RegistrationID]models.Registration, len(s.registrations))
	for k, v := range s.registrations {
		regs[k] = *v
	}
	return memorySnapshot{registrations: regs, attachments: len(s.attachments)}
}

// Restore rolls back to snapshot. Attachments are append-only, so
// truncating to the recorded length undoes additions. The whole store is
// replaced, so any write that bypassed the tx.MemoryRunner after the snapshot
// is lost too; the service routes every write through the runner, and
// deployments use Postgres.
func (s *InMemoryStore) Restore(snapshot any) {
	snap, ok := snapshot.(memorySnapshot)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations = make(map[id.RegistrationID]*models.Registration, len(snap.registrations))
	for k, v := range snap.registrations {
		r := v
		s.registrations[k] = &r
	}
	if snap.attachments <= len(s.attachments) {
		s.attachments = s.attachments[:snap.attachments]
	}
}
