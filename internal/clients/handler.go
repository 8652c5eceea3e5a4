package clients

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ssoportal/internal/hydra"
	"ssoportal/internal/platform/middleware"
	"ssoportal/internal/transport/http/shared"
	"ssoportal/pkg/domain"
)

// Handler exposes the tenant-scoped client registry over HTTP.
type Handler struct {
	clients *Service
	auth    func(http.Handler) http.Handler
	logger  *slog.Logger
}

func NewHandler(clients *Service, auth func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{clients: clients, auth: auth, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Post("/clients", h.handleCreate)
		r.Get("/clients", h.handleList)
		r.Get("/clients/{clientID}", h.handleGet)
		r.Put("/clients/{clientID}", h.handleUpdate)
		r.Delete("/clients/{clientID}", h.handleDelete)
		r.Post("/clients/{clientID}/regenerate-secret", h.handleRegenerateSecret)
	})
}

// createRequest is an OAuth client registration plus an optional explicit
// tenant (super-admin only; everyone else is pinned to their own).
type createRequest struct {
	hydra.OAuthClient
	TenantID *domain.TenantID `json:"tenant_id,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	created, err := h.clients.Create(ctx, middleware.GetPrincipal(ctx), &req.OAuthClient, req.TenantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	list, err := h.clients.List(ctx, middleware.GetPrincipal(ctx), limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"clients": list})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	client, err := h.clients.Get(ctx, middleware.GetPrincipal(ctx), chi.URLParam(r, "clientID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, client)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req hydra.OAuthClient
	if err := shared.Decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	updated, err := h.clients.Update(ctx, middleware.GetPrincipal(ctx), chi.URLParam(r, "clientID"), &req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.clients.Delete(ctx, middleware.GetPrincipal(ctx), chi.URLParam(r, "clientID")); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRegenerateSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	client, err := h.clients.RegenerateSecret(ctx, middleware.GetPrincipal(ctx), chi.URLParam(r, "clientID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, client)
}
