// Package handler exposes admin authentication and management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ssoportal/internal/admin/models"
	"ssoportal/internal/admin/service"
	"ssoportal/internal/authz"
	"ssoportal/internal/platform/middleware"
	"ssoportal/internal/transport/http/shared"
	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
	"ssoportal/pkg/requestcontext"
)

// Service defines the admin operations the transport needs.
type Service interface {
	Authenticate(ctx context.Context, email, plainPassword string) (*service.LoginResult, error)
	Create(ctx context.Context, principal *authz.Principal, req service.CreateRequest) (*models.Admin, error)
	Get(ctx context.Context, principal *authz.Principal, adminID domain.AdminID) (*models.Admin, error)
	SetPassword(ctx context.Context, principal *authz.Principal, adminID domain.AdminID, plain string) error
}

type Handler struct {
	admins Service
	auth   func(http.Handler) http.Handler
	logger *slog.Logger
}

func New(admins Service, auth func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{admins: admins, auth: auth, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Get("/auth/me", h.handleWhoAmI)
		r.Post("/admins", h.handleCreate)
		r.Get("/admins/{adminID}", h.handleGet)
		r.Put("/admins/{adminID}/password", h.handleSetPassword)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.admins.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "admin login failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := middleware.GetPrincipal(ctx)
	if principal == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "no principal"))
		return
	}

	admin, err := h.admins.Get(ctx, principal, principal.ID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, admin)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.CreateRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	admin, err := h.admins.Create(ctx, middleware.GetPrincipal(ctx), req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, admin)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := shared.ParseID(chi.URLParam(r, "adminID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	admin, err := h.admins.Get(ctx, middleware.GetPrincipal(ctx), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, admin)
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := shared.ParseID(chi.URLParam(r, "adminID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req setPasswordRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.admins.SetPassword(ctx, middleware.GetPrincipal(ctx), id, req.Password); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
