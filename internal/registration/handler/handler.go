package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"landtrust/internal/access"
	"landtrust/internal/registration/models"
	"landtrust/internal/registration/service"
	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/platform/httputil"
	"landtrust/pkg/requestcontext"
)

// Service is the registration surface used by HTTP handlers.
type Service interface {
	Submit(ctx context.Context, userID id.UserID, req models.SubmitRequest) (id.RegistrationID, error)
	GetByUser(ctx context.Context, userID id.UserID) (*models.Registration, error)
	UpdateExistingPropertyInfo(ctx context.Context, userID id.UserID, req models.ExistingPropertyRequest) (*models.Registration, error)
	AddAttachment(ctx context.Context, caller service.Caller, regID id.RegistrationID, req models.AddAttachmentRequest) (*models.Attachment, error)
	Transition(ctx context.Context, regID id.RegistrationID, to models.Status, actor id.Actor) (*models.Registration, error)
	List(ctx context.Context, filter models.ListFilter) (*models.ListPage, error)
	GetDetail(ctx context.Context, regID id.RegistrationID) (*models.Detail, error)
}

// StaffChecker tells whether the current identity is staff.
type StaffChecker interface {
	CheckAdmin(ctx context.Context, ident *id.ExternalIdentity) (access.Decision, error)
}

const (
	defaultMaxUploadBytes = 15 << 20
	// multipartOverhead covers form fields and part headers on top of the file.
	multipartOverhead = 64 << 10
)

type Handler struct {
	registrations  Service
	staff          StaffChecker
	logger         *slog.Logger
	maxUploadBytes int64
}

type Option func(*Handler)

func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

func New(registrations Service, staff StaffChecker, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		registrations:  registrations,
		staff:          staff,
		logger:         logger,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts applicant routes. The caller must have installed the
// middleware that resolves the signed-in user.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registrations", h.handleSubmit)
	r.Get("/registrations/me", h.handleGetMine)
	r.Post("/registrations/me/existing-property", h.handleUpdateExistingProperty)
	r.Post("/registrations/{id}/attachments", h.handleAddAttachment)
}

// RegisterAdmin mounts staff review routes. The caller must guard r with the
// staff gate.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/registrations", h.handleList)
	r.Get("/registrations/{id}", h.handleGetDetail)
	r.Post("/registrations/{id}/status", h.handleTransition)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.SubmitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.warn(ctx, "invalid submit request", err)
		httputil.WriteError(w, err)
		return
	}

	regID, err := h.registrations.Submit(ctx, requestcontext.UserID(ctx), req)
	if err != nil {
		h.fail(ctx, w, "submit registration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SubmitResponse{ID: regID.String()})
}

func (h *Handler) handleGetMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reg, err := h.registrations.GetByUser(ctx, requestcontext.UserID(ctx))
	if err != nil {
		h.fail(ctx, w, "get registration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MineResponse{Registration: toRegistrationResponse(reg)})
}

func (h *Handler) handleUpdateExistingProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.ExistingPropertyRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.warn(ctx, "invalid existing property request", err)
		httputil.WriteError(w, err)
		return
	}

	reg, err := h.registrations.UpdateExistingPropertyInfo(ctx, requestcontext.UserID(ctx), req)
	if err != nil {
		h.fail(ctx, w, "update existing property", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MineResponse{Registration: toRegistrationResponse(reg)})
}

func (h *Handler) handleAddAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file is too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected a multipart form"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	rawKind := strings.TrimSpace(r.FormValue("kind"))
	if rawKind == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "kind is required"))
		return
	}
	kind, err := models.ParseKind(strings.ToUpper(rawKind))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file is required"))
		return
	}
	defer file.Close()
	if header.Size > h.maxUploadBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "file is too large"))
		return
	}

	caller, err := h.caller(ctx)
	if err != nil {
		h.fail(ctx, w, "check staff access", err)
		return
	}

	att, err := h.registrations.AddAttachment(ctx, caller, regID, models.AddAttachmentRequest{
		Kind:        kind,
		Label:       r.FormValue("label"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.fail(ctx, w, "add attachment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAttachmentResponse(*att))
}

// caller builds the service caller; staff status is only looked up when an
// identity is present.
func (h *Handler) caller(ctx context.Context) (service.Caller, error) {
	c := service.Caller{UserID: requestcontext.UserID(ctx), Email: requestcontext.UserEmail(ctx)}
	if h.staff == nil {
		return c, nil
	}
	decision, err := h.staff.CheckAdmin(ctx, requestcontext.Identity(ctx))
	if err != nil {
		return service.Caller{}, err
	}
	c.Staff = decision.Authorized
	return c, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter, err := models.ParseListFilter(q.Get("q"), q.Get("status"), q.Get("limit"), q.Get("cursor"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	page, err := h.registrations.List(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "list registrations", err)
		return
	}
	resp := ListResponse{Items: make([]*RegistrationResponse, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, reg := range page.Items {
		resp.Items = append(resp.Items, toRegistrationResponse(reg))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	detail, err := h.registrations.GetDetail(ctx, regID)
	if err != nil {
		h.fail(ctx, w, "get registration detail", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req models.TransitionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := models.ParseTargetStatus(strings.ToUpper(strings.TrimSpace(req.To)))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reg, err := h.registrations.Transition(ctx, regID, to, requestcontext.Actor(ctx))
	if err != nil {
		h.fail(ctx, w, "transition registration", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRegistrationResponse(reg))
}

func (h *Handler) warn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}

// fail logs at a level matching the error class and writes the response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, op+" failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.warn(ctx, op+" rejected", err)
	}
	httputil.WriteError(w, err)
}
