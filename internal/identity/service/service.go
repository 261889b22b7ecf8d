package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"landtrust/internal/identity/models"
	"landtrust/internal/platform/metrics"
	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/email"
	"landtrust/pkg/platform/sentinel"
	"landtrust/pkg/platform/tx"
	"landtrust/pkg/requestcontext"
)

type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

// Resolution outcomes, also used as metric labels.
const (
	OutcomeUnchanged = "unchanged"
	OutcomeRefreshed = "refreshed"
	OutcomeAdopted   = "adopted"
	OutcomeCreated   = "created"
)

var tracer = otel.Tracer("landtrust/identity")

// Service reconciles identities asserted by the identity provider with
// internal users.
type Service struct {
	users   UserStore
	tx      tx.Runner
	logger  *slog.Logger
	metrics *metrics.Metrics
	group   singleflight.Group
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(users UserStore, runner tx.Runner, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if runner == nil {
		return nil, errors.New("tx runner is required")
	}
	s := &Service{users: users, tx: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Resolve returns the user linked to ident, linking or creating one as
// needed. A nil identity is anonymous and yields (nil, nil).
//
// Lookup order is external id, then normalized email. A user found by email
// adopts the external id. Each call performs at most one write and none when
// the stored profile already matches.
func (s *Service) Resolve(ctx context.Context, ident *id.ExternalIdentity) (*models.User, error) {
	if ident == nil {
		return nil, nil
	}
	subject := strings.TrimSpace(ident.Subject)
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identity subject is required")
	}
	addr := email.Normalize(ident.Email)
	if addr == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "identity email is required")
	}
	if !email.Valid(addr) {
		return nil, dErrors.New(dErrors.CodeValidation, "identity email is invalid")
	}
	claim := claimedProfile{
		subject:   subject,
		email:     addr,
		firstName: strings.TrimSpace(ident.FirstName),
		lastName:  strings.TrimSpace(ident.LastName),
	}

	ctx, span := tracer.Start(ctx, "identity.Resolve", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	v, err, shared := s.group.Do(subject, func() (any, error) {
		return s.resolveWithRetry(ctx, claim)
	})
	span.SetAttributes(attribute.Bool("identity.shared", shared))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		return nil, err
	}
	user := *v.(*models.User)
	return &user, nil
}

type claimedProfile struct {
	subject   string
	email     string
	firstName string
	lastName  string
}

// resolveWithRetry runs one resolution attempt and, when a concurrent
// request won the insert, re-reads so the winner's row is returned.
func (s *Service) resolveWithRetry(ctx context.Context, claim claimedProfile) (*models.User, error) {
	user, outcome, err := s.resolveOnce(ctx, claim)
	if errors.Is(err, sentinel.ErrAlreadyUsed) && outcome == OutcomeCreated {
		s.logger.InfoContext(ctx, "identity create lost a uniqueness race, re-reading",
			"subject", claim.subject,
			"request_id", requestcontext.RequestID(ctx),
		)
		user, outcome, err = s.resolveOnce(ctx, claim)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "email is linked to another account")
		}
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to resolve identity")
	}

	s.incrementResolution(outcome)
	if outcome != OutcomeUnchanged {
		s.logger.InfoContext(ctx, "identity resolved",
			"outcome", outcome,
			"user_id", user.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return user, nil
}

// resolveOnce reports the outcome it attempted even on failure so the caller
// can tell a lost create race from other uniqueness errors.
func (s *Service) resolveOnce(ctx context.Context, claim claimedProfile) (*models.User, string, error) {
	var (
		user    *models.User
		outcome string
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)

		linked, err := s.users.FindByExternalID(ctx, claim.subject)
		switch {
		case err == nil:
			user = linked
			if !linked.ApplyProfile(claim.email, claim.firstName, claim.lastName) {
				outcome = OutcomeUnchanged
				return nil
			}
			outcome = OutcomeRefreshed
			linked.UpdatedAt = now
			return s.users.Update(ctx, linked)
		case !errors.Is(err, sentinel.ErrNotFound):
			return err
		}

		byEmail, err := s.users.FindByEmail(ctx, claim.email)
		switch {
		case err == nil:
			if byEmail.Linked() {
				s.logger.WarnContext(ctx, "relinking user to a new external identity",
					"user_id", byEmail.ID.String(),
					"request_id", requestcontext.RequestID(ctx),
				)
			}
			user = byEmail
			outcome = OutcomeAdopted
			byEmail.ExternalID = claim.subject
			byEmail.ApplyProfile(claim.email, claim.firstName, claim.lastName)
			byEmail.UpdatedAt = now
			return s.users.Update(ctx, byEmail)
		case !errors.Is(err, sentinel.ErrNotFound):
			return err
		}

		first, last := claim.firstName, claim.lastName
		if first == "" && last == "" {
			first, last = email.DeriveNameFromEmail(claim.email)
		}
		user = &models.User{
			ID:         id.NewUserID(),
			ExternalID: claim.subject,
			Email:      claim.email,
			FirstName:  first,
			LastName:   last,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		outcome = OutcomeCreated
		return s.users.Create(ctx, user)
	})
	if err != nil {
		return nil, outcome, err
	}
	return user, outcome, nil
}

// LookupByExternalID returns the linked user without ever writing. No match
// yields (nil, nil).
func (s *Service) LookupByExternalID(ctx context.Context, subject string) (*models.User, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, nil
	}
	user, err := s.users.FindByExternalID(ctx, subject)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to look up user")
	}
	return user, nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load user")
	}
	return user, nil
}

func (s *Service) incrementResolution(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementResolution(outcome)
	}
}
