package service

import (
	"context"
	"errors"

	"landtrust/internal/registration/models"
	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/platform/audit"
	"landtrust/pkg/platform/sentinel"
)

// List returns one page of registrations for staff review, newest first.
func (s *Service) List(ctx context.Context, filter models.ListFilter) (*models.ListPage, error) {
	filter = filter.Normalized()
	limit := filter.Limit
	filter.Limit = limit + 1

	regs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list registrations")
	}
	page := &models.ListPage{Items: regs}
	if len(regs) > limit {
		page.Items = regs[:limit]
		page.NextCursor = models.CursorFor(regs[limit-1]).Encode()
	}
	return page, nil
}

// GetDetail assembles everything staff need to review one registration.
func (s *Service) GetDetail(ctx context.Context, regID id.RegistrationID) (*models.Detail, error) {
	reg, err := s.store.FindByID(ctx, regID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load registration")
	}
	if err := s.withAttachments(ctx, reg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load attachments")
	}

	kinds := make([]models.Kind, 0, len(reg.Attachments))
	for _, a := range reg.Attachments {
		kinds = append(kinds, a.Kind)
	}

	history, err := s.audit.History(ctx, audit.CommonerSubject(regID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load history")
	}
	events := make([]models.Event, 0, len(history))
	for _, e := range history {
		events = append(events, models.Event{
			Type:       string(e.Type),
			ActorEmail: e.ActorEmail,
			Message:    e.Message,
			Metadata:   e.Metadata,
			CreatedAt:  e.CreatedAt,
		})
	}

	return &models.Detail{
		Registration: reg,
		Checklist:    models.EvaluateChecklist(kinds),
		Events:       events,
	}, nil
}
