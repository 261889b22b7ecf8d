// Package service reads and writes site settings. Every write is audited in
// the same unit of work.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"landtrust/internal/settings/models"
	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/platform/audit"
	"landtrust/pkg/platform/sentinel"
	"landtrust/pkg/platform/tx"
	"landtrust/pkg/requestcontext"
)

type Store interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.AdminEvent) error
}

// invalidator is implemented by caching stores.
type invalidator interface {
	Invalidate(ctx context.Context, key string)
}

type Service struct {
	store  Store
	tx     tx.Runner
	audit  AuditPublisher
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, runner tx.Runner, publisher AuditPublisher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("settings store is required")
	}
	if runner == nil {
		return nil, errors.New("tx runner is required")
	}
	if publisher == nil {
		return nil, errors.New("audit publisher is required")
	}
	s := &Service{store: store, tx: runner, audit: publisher, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetOpen reports whether land applications are accepted. A flag that was
// never written reads as open.
func (s *Service) GetOpen(ctx context.Context) (*models.OpenState, error) {
	setting, err := s.store.Get(ctx, models.KeyLandApplicationsOpen)
	if errors.Is(err, sentinel.ErrNotFound) {
		state := models.StateOf(nil)
		return &state, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load settings")
	}
	state := models.StateOf(setting)
	return &state, nil
}

// SetOpen stores the flag and records a SETTING_UPDATED event. Last write wins.
func (s *Service) SetOpen(ctx context.Context, open bool, actor id.Actor) (*models.Setting, error) {
	now := requestcontext.Now(ctx)
	setting := &models.Setting{
		Key:       models.KeyLandApplicationsOpen,
		Value:     models.OpenValue(open),
		UpdatedAt: now,
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Upsert(ctx, setting); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to save setting")
		}
		event := audit.AdminEvent{
			Subject:    audit.Subject(audit.SubjectDomainSetting, setting.Key),
			Type:       audit.EventSettingUpdated,
			ActorID:    actor.UserID,
			ActorEmail: actor.Email,
			Message:    fmt.Sprintf("Land applications %s by %s", openWord(open), actor),
			Metadata:   map[string]string{"open": strconv.FormatBool(open)},
			CreatedAt:  now,
		}
		if err := s.audit.Emit(ctx, event); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record setting change; setting unchanged")
		}
		return nil
	})
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			err = dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to save setting")
		}
		return nil, err
	}

	// Drop anything a concurrent reader cached while the write was uncommitted.
	if inv, ok := s.store.(invalidator); ok {
		inv.Invalidate(ctx, setting.Key)
	}

	s.logger.InfoContext(ctx, "land applications flag updated",
		"open", open,
		"actor", actor.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return setting, nil
}

func openWord(open bool) string {
	if open {
		return "opened"
	}
	return "closed"
}
