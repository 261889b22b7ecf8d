package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"landtrust/internal/registration/models"
	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/platform/audit"
	"landtrust/pkg/platform/sentinel"
	"landtrust/pkg/requestcontext"
)

var tracer = otel.Tracer("landtrust/registration")

// Transition records a staff decision. Repeating the current status is a
// no-op that emits nothing; changing a decision is a Conflict. The status
// update and its admin event commit together or not at all.
func (s *Service) Transition(ctx context.Context, regID id.RegistrationID, to models.Status, actor id.Actor) (*models.Registration, error) {
	if !to.IsTerminal() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "status must be APPROVED or REJECTED, got %q", to)
	}

	ctx, span := tracer.Start(ctx, "registration.Transition", trace.WithAttributes(
		attribute.String("registration.id", regID.String()),
		attribute.String("registration.to", string(to)),
	))
	defer span.End()

	var (
		result  *models.Registration
		changed bool
		from    models.Status
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		changed = false
		reg, err := s.store.FindByID(ctx, regID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load registration")
		}
		if reg.Status == to {
			result = reg
			return nil
		}
		if !reg.Status.CanTransitionTo(to) {
			return conflict(reg.Status, to)
		}

		from = reg.Status
		now := requestcontext.Now(ctx)
		err = s.store.UpdateStatusIf(ctx, regID, from, to, now, actor.String())
		if errors.Is(err, sentinel.ErrInvalidState) {
			// Another decision landed between the read and the update.
			current, findErr := s.store.FindByID(ctx, regID)
			if findErr != nil {
				return dErrors.Wrap(findErr, dErrors.CodeUnavailable, "failed to reload registration")
			}
			if current.Status == to {
				result = current
				return nil
			}
			return conflict(current.Status, to)
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update registration status")
		}

		reg.Status = to
		reg.DecidedAt = &now
		reg.DecidedBy = actor.String()
		reg.UpdatedAt = now

		event := audit.AdminEvent{
			Subject:    audit.CommonerSubject(regID),
			Type:       audit.EventRegistrationStatusChanged,
			ActorID:    actor.UserID,
			ActorEmail: actor.Email,
			Message:    fmt.Sprintf("Registration %s by %s", strings.ToLower(string(to)), actor),
			Metadata: map[string]string{
				"from": string(from),
				"to":   string(to),
			},
			CreatedAt: now,
		}
		if err := s.audit.Emit(ctx, event); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record decision; status unchanged")
		}
		result = reg
		changed = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			err = dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update registration status")
		}
		return nil, err
	}

	span.SetAttributes(attribute.Bool("registration.changed", changed))
	if changed {
		if s.metrics != nil {
			s.metrics.IncrementTransition(string(to))
		}
		s.logger.InfoContext(ctx, "registration status changed",
			"registration_id", regID.String(),
			"from", string(from),
			"to", string(to),
			"actor", actor.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	if err := s.withAttachments(ctx, result); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load attachments")
	}
	return result, nil
}

func conflict(current, to models.Status) error {
	return dErrors.Newf(dErrors.CodeConflict, "registration is already %s and cannot become %s", current, to)
}
