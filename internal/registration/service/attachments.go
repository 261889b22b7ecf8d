package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"landtrust/internal/blob"
	"landtrust/internal/registration/models"
	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/platform/sentinel"
	"landtrust/pkg/requestcontext"
)

const (
	defaultContentType = "application/octet-stream"
	blobCleanupTimeout = 5 * time.Second
)

// AddAttachment uploads a document and records it against the registration.
// The owner and staff may add documents; status is never affected.
func (s *Service) AddAttachment(ctx context.Context, caller Caller, regID id.RegistrationID, req models.AddAttachmentRequest) (*models.Attachment, error) {
	if caller.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "sign in required")
	}
	req.Label = strings.TrimSpace(req.Label)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	reg, err := s.store.FindByID(ctx, regID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load registration")
	}
	if reg.UserID != caller.UserID && !caller.Staff {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the applicant or staff may add documents")
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	key := blob.Key("registrations/"+regID.String(), req.FileName)
	url, err := s.blobs.Put(ctx, key, contentType, req.Body, req.Size)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store document")
	}

	att := &models.Attachment{
		ID:             id.NewAttachmentID(),
		RegistrationID: regID,
		Kind:           req.Kind,
		URL:            url,
		ContentType:    contentType,
		SizeBytes:      req.Size,
		Label:          req.Label,
		CreatedAt:      requestcontext.Now(ctx),
	}
	if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.AddAttachment(ctx, att)
	}); err != nil {
		s.discardUpload(ctx, key, err)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to record attachment")
	}

	if s.metrics != nil {
		s.metrics.IncrementAttachment(string(att.Kind))
	}
	s.logger.InfoContext(ctx, "attachment added",
		"registration_id", regID.String(),
		"kind", string(att.Kind),
		"staff", caller.Staff,
		"request_id", requestcontext.RequestID(ctx),
	)
	return att, nil
}

// discardUpload removes an object whose attachment row was never written. A
// failed delete leaves an orphan, so its key is logged for manual cleanup.
func (s *Service) discardUpload(ctx context.Context, key string, cause error) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), blobCleanupTimeout)
	defer cancel()
	if err := s.blobs.Delete(cleanupCtx, key); err != nil {
		s.logger.ErrorContext(ctx, "orphaned document upload",
			"blob_key", key,
			"cause", cause,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	s.logger.WarnContext(ctx, "discarded document upload after failed attachment write",
		"blob_key", key,
		"cause", cause,
		"request_id", requestcontext.RequestID(ctx),
	)
}

// EvaluateChecklist reports which required documents the registration has.
// It is advisory; decisions do not depend on it.
func (s *Service) EvaluateChecklist(ctx context.Context, regID id.RegistrationID) (models.Checklist, error) {
	if _, err := s.store.FindByID(ctx, regID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Checklist{}, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return models.Checklist{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load registration")
	}
	kinds, err := s.store.ListPresentKinds(ctx, regID)
	if err != nil {
		return models.Checklist{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load attachments")
	}
	return models.EvaluateChecklist(kinds), nil
}
