package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"landtrust/internal/blob"
	"landtrust/internal/platform/metrics"
	"landtrust/internal/registration/models"
	id "landtrust/pkg/domain"
	"landtrust/pkg/platform/audit"
	"landtrust/pkg/platform/tx"
)

type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error)
	FindByUserID(ctx context.Context, userID id.UserID) (*models.Registration, error)
	UpdateExistingProperty(ctx context.Context, regID id.RegistrationID, info models.ExistingProperty, at time.Time) error
	UpdateStatusIf(ctx context.Context, regID id.RegistrationID, from, to models.Status, decidedAt time.Time, decidedBy string) error
	AddAttachment(ctx context.Context, att *models.Attachment) error
	ListAttachments(ctx context.Context, regID id.RegistrationID) ([]models.Attachment, error)
	ListPresentKinds(ctx context.Context, regID id.RegistrationID) ([]models.Kind, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Registration, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.AdminEvent) error
	History(ctx context.Context, subject string) ([]audit.AdminEvent, error)
}

// Caller identifies who is acting on a registration. Staff is decided by the
// access gate before the service is called.
type Caller struct {
	UserID id.UserID
	Email  string
	Staff  bool
}

// Service owns the registration lifecycle: submission, attachments, review
// and staff decisions.
type Service struct {
	store   Store
	tx      tx.Runner
	audit   AuditPublisher
	blobs   blob.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
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

func New(store Store, runner tx.Runner, publisher AuditPublisher, blobs blob.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("registration store is required")
	}
	if runner == nil {
		return nil, errors.New("tx runner is required")
	}
	if publisher == nil {
		return nil, errors.New("audit publisher is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	s := &Service{store: store, tx: runner, audit: publisher, blobs: blobs, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) withAttachments(ctx context.Context, reg *models.Registration) error {
	atts, err := s.store.ListAttachments(ctx, reg.ID)
	if err != nil {
		return err
	}
	reg.Attachments = atts
	return nil
}
