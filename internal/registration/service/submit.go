package service

import (
	"context"
	"errors"

	"landtrust/internal/registration/models"
	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/platform/sentinel"
	"landtrust/pkg/requestcontext"
)

// Submit creates the caller's registration, or returns the id of the one
// they already have without touching its fields.
func (s *Service) Submit(ctx context.Context, userID id.UserID, req models.SubmitRequest) (id.RegistrationID, error) {
	if userID.IsNil() {
		return id.RegistrationID{}, dErrors.New(dErrors.CodeUnauthorized, "sign in required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return id.RegistrationID{}, err
	}

	existing, err := s.store.FindByUserID(ctx, userID)
	if err == nil {
		s.logger.InfoContext(ctx, "registration already exists, submission ignored",
			"registration_id", existing.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return existing.ID, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return id.RegistrationID{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load registration")
	}

	now := requestcontext.Now(ctx)
	reg := &models.Registration{
		ID:        id.NewRegistrationID(),
		UserID:    userID,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.ApplyTo(reg)

	// The race re-read runs after the unit of work; a Postgres transaction is
	// unusable once the unique violation has aborted it.
	if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Create(ctx, reg)
	}); err != nil {
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return id.RegistrationID{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create registration")
		}
		winner, findErr := s.store.FindByUserID(ctx, userID)
		if findErr != nil {
			return id.RegistrationID{}, dErrors.Wrap(findErr, dErrors.CodeUnavailable, "failed to load registration")
		}
		return winner.ID, nil
	}

	if s.metrics != nil {
		s.metrics.IncrementSubmitted()
	}
	s.logger.InfoContext(ctx, "registration submitted",
		"registration_id", reg.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return reg.ID, nil
}

// GetByUser returns the user's registration with attachments newest first,
// or (nil, nil) when there is none.
func (s *Service) GetByUser(ctx context.Context, userID id.UserID) (*models.Registration, error) {
	reg, err := s.store.FindByUserID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load registration")
	}
	if err := s.withAttachments(ctx, reg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load attachments")
	}
	return reg, nil
}

// UpdateExistingPropertyInfo records land the member already holds. Only
// approved members may do this.
func (s *Service) UpdateExistingPropertyInfo(ctx context.Context, userID id.UserID, req models.ExistingPropertyRequest) (*models.Registration, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	reg, err := s.store.FindByUserID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no registration found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load registration")
	}
	if reg.Status != models.StatusApproved {
		return nil, dErrors.New(dErrors.CodeForbidden, "registration not approved yet")
	}

	info := req.ToModel()
	now := requestcontext.Now(ctx)
	if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.UpdateExistingProperty(ctx, reg.ID, info, now)
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update registration")
	}
	reg.HasExistingProperty = info.HasExistingProperty
	reg.ExistingLotNumber = info.ExistingLotNumber
	reg.ExistingPropertyNotes = info.ExistingPropertyNotes
	reg.UpdatedAt = now
	return reg, nil
}
