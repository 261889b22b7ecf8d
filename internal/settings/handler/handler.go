package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"landtrust/internal/settings/models"
	id "landtrust/pkg/domain"
	dErrors "landtrust/pkg/domain-errors"
	"landtrust/pkg/platform/httputil"
	"landtrust/pkg/requestcontext"
)

type Service interface {
	GetOpen(ctx context.Context) (*models.OpenState, error)
	SetOpen(ctx context.Context, open bool, actor id.Actor) (*models.Setting, error)
}

type Handler struct {
	settings Service
	logger   *slog.Logger
}

func New(settings Service, logger *slog.Logger) *Handler {
	return &Handler{settings: settings, logger: logger}
}

// Register mounts the public read-only flag.
func (h *Handler) Register(r chi.Router) {
	r.Get("/settings/land-applications", h.handleGet)
}

// RegisterAdmin mounts staff routes; r must be behind the staff gate.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/settings/land-applications", h.handleGet)
	r.Post("/settings/land-applications", h.handleSet)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, err := h.settings.GetOpen(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load land applications flag",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.SetOpenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Open == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "open is required"))
		return
	}

	setting, err := h.settings.SetOpen(ctx, *req.Open, requestcontext.Actor(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to update land applications flag",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.StateOf(setting))
}
