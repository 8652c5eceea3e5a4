// Package handler exposes end-user management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ssoportal/internal/authz"
	"ssoportal/internal/platform/middleware"
	"ssoportal/internal/transport/http/shared"
	"ssoportal/internal/user/models"
	"ssoportal/internal/user/service"
	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
)

// Service defines the user operations the transport needs.
type Service interface {
	Create(ctx context.Context, principal *authz.Principal, req service.CreateRequest) (*models.User, error)
	Get(ctx context.Context, principal *authz.Principal, userID domain.UserID) (*models.User, error)
	List(ctx context.Context, principal *authz.Principal, tenantID *domain.TenantID, limit, offset int) ([]*models.User, error)
	Update(ctx context.Context, principal *authz.Principal, userID domain.UserID, req service.UpdateRequest) (*models.User, error)
	SetPassword(ctx context.Context, principal *authz.Principal, userID domain.UserID, plain string) error
	Deactivate(ctx context.Context, principal *authz.Principal, userID domain.UserID) error
}

type Handler struct {
	users  Service
	auth   func(http.Handler) http.Handler
	logger *slog.Logger
}

func New(users Service, auth func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{users: users, auth: auth, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Post("/users", h.handleCreate)
		r.Get("/users", h.handleList)
		r.Get("/users/{userID}", h.handleGet)
		r.Put("/users/{userID}", h.handleUpdate)
		r.Put("/users/{userID}/password", h.handleSetPassword)
		r.Delete("/users/{userID}", h.handleDeactivate)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.CreateRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	user, err := h.users.Create(ctx, middleware.GetPrincipal(ctx), req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var tenantFilter *domain.TenantID
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant_id"))
			return
		}
		tenantFilter = &id
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.users.List(ctx, middleware.GetPrincipal(ctx), tenantFilter, limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := shared.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	user, err := h.users.Get(ctx, middleware.GetPrincipal(ctx), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := shared.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req service.UpdateRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	user, err := h.users.Update(ctx, middleware.GetPrincipal(ctx), id, req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, user)
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := shared.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req setPasswordRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.users.SetPassword(ctx, middleware.GetPrincipal(ctx), id, req.Password); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := shared.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.users.Deactivate(ctx, middleware.GetPrincipal(ctx), id); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
