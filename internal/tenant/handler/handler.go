// Package handler exposes tenant management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ssoportal/internal/authz"
	"ssoportal/internal/platform/middleware"
	"ssoportal/internal/tenant/models"
	"ssoportal/internal/tenant/service"
	"ssoportal/internal/transport/http/shared"
	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
	"ssoportal/pkg/requestcontext"
)

// Service defines the tenant operations the transport needs.
type Service interface {
	Onboard(ctx context.Context, principal *authz.Principal, req service.OnboardRequest) (*service.OnboardResult, error)
	Get(ctx context.Context, principal *authz.Principal, tenantID domain.TenantID) (*models.Tenant, error)
	List(ctx context.Context, principal *authz.Principal, limit, offset int) ([]*models.Tenant, error)
	Update(ctx context.Context, principal *authz.Principal, tenantID domain.TenantID, req service.UpdateRequest) (*models.Tenant, error)
	Deactivate(ctx context.Context, principal *authz.Principal, tenantID domain.TenantID) error
}

type Handler struct {
	tenants Service
	auth    func(http.Handler) http.Handler
	logger  *slog.Logger
}

func New(tenants Service, auth func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{tenants: tenants, auth: auth, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Post("/tenants", h.handleOnboard)
		r.Get("/tenants", h.handleList)
		r.Get("/tenants/{tenantID}", h.handleGet)
		r.Put("/tenants/{tenantID}", h.handleUpdate)
		r.Delete("/tenants/{tenantID}", h.handleDeactivate)
	})
}

func (h *Handler) handleOnboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.OnboardRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.tenants.Onboard(ctx, middleware.GetPrincipal(ctx), req)
	if err != nil {
		h.logError(ctx, "tenant onboarding failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := pagination(r)

	tenants, err := h.tenants.List(ctx, middleware.GetPrincipal(ctx), limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := shared.ParseID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	tenant, err := h.tenants.Get(ctx, middleware.GetPrincipal(ctx), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := shared.ParseID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req service.UpdateRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	tenant, err := h.tenants.Update(ctx, middleware.GetPrincipal(ctx), id, req)
	if err != nil {
		h.logError(ctx, "tenant update failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := shared.ParseID(chi.URLParam(r, "tenantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.tenants.Deactivate(ctx, middleware.GetPrincipal(ctx), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
