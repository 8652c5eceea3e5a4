// Package flow implements the browser-facing login, consent, and logout
// challenge handlers. The external provider drives the flow: it issues a
// challenge token, we fetch the pending request, collect whatever input is
// needed, and complete the challenge. Every redirect target comes from the
// provider's response.
package flow

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"ssoportal/internal/hydra"
	"ssoportal/internal/platform/metrics"
	tenantmodels "ssoportal/internal/tenant/models"
	"ssoportal/internal/tenant/resolver"
	usersvc "ssoportal/internal/user/service"
	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
	"ssoportal/pkg/platform/sentinel"
)

//go:embed templates/*.html
var templateFS embed.FS

// Session remember windows passed to the provider on accepted logins.
const (
	rememberForLong  = 30 * 24 * 60 * 60 // seconds
	rememberForShort = 60 * 60
)

// Provider is the slice of the admin API client the flows need.
type Provider interface {
	GetLoginRequest(ctx context.Context, challenge string) (*hydra.LoginRequest, error)
	AcceptLoginRequest(ctx context.Context, challenge string, body hydra.AcceptLogin) (*hydra.Completed, error)
	RejectLoginRequest(ctx context.Context, challenge string, body hydra.Reject) (*hydra.Completed, error)
	GetConsentRequest(ctx context.Context, challenge string) (*hydra.ConsentRequest, error)
	AcceptConsentRequest(ctx context.Context, challenge string, body hydra.AcceptConsent) (*hydra.Completed, error)
	RejectConsentRequest(ctx context.Context, challenge string, body hydra.Reject) (*hydra.Completed, error)
	GetLogoutRequest(ctx context.Context, challenge string) (*hydra.LogoutRequest, error)
	AcceptLogoutRequest(ctx context.Context, challenge string) (*hydra.Completed, error)
	RejectLogoutRequest(ctx context.Context, challenge string) error
}

// Authenticator verifies end-user credentials within a tenant.
type Authenticator interface {
	Authenticate(ctx context.Context, tenantID domain.TenantID, username, plainPassword string, remember bool) (*usersvc.LoginResult, error)
}

// TenantResolver maps request signals to the acting tenant.
type TenantResolver interface {
	Resolve(ctx context.Context, hint resolver.Hint) (*tenantmodels.Tenant, error)
}

// Handler serves the challenge flow endpoints.
type Handler struct {
	provider          Provider
	users             Authenticator
	tenants           TenantResolver
	templates         *template.Template
	logoutSkipConfirm bool
	logger            *slog.Logger
	metrics           *metrics.Metrics
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLogoutConfirmation makes GET /logout render a confirmation form instead
// of accepting the challenge immediately.
func WithLogoutConfirmation() Option {
	return func(h *Handler) { h.logoutSkipConfirm = false }
}

func NewHandler(provider Provider, users Authenticator, tenants TenantResolver, opts ...Option) *Handler {
	h := &Handler{
		provider:          provider,
		users:             users,
		tenants:           tenants,
		templates:         template.Must(template.ParseFS(templateFS, "templates/*.html")),
		logoutSkipConfirm: true,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type loginView struct {
	Challenge  string
	TenantName string
	Branding   tenantmodels.Branding
	Error      string
}

// ShowLogin handles GET /login. A skipped challenge (provider already has a
// session) is accepted immediately with the prior subject.
func (h *Handler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("login_challenge")
	if challenge == "" {
		http.Error(w, "login_challenge is required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	lr, err := h.provider.GetLoginRequest(ctx, challenge)
	if err != nil {
		h.redirectError(w, r, err)
		return
	}

	if lr.Skip {
		// The provider already holds a session; keep the short remember
		// window alive rather than letting the accept reset it.
		completed, err := h.provider.AcceptLoginRequest(ctx, challenge, hydra.AcceptLogin{
			Subject:     lr.Subject,
			Remember:    true,
			RememberFor: rememberForShort,
		})
		if err != nil {
			h.redirectError(w, r, err)
			return
		}
		h.countAccept("login")
		http.Redirect(w, r, completed.RedirectTo, http.StatusFound)
		return
	}

	view := loginView{
		Challenge:  challenge,
		TenantName: "SSO Portal",
		Branding:   defaultBranding(),
		Error:      r.URL.Query().Get("error"),
	}
	if tenant := h.resolveForBranding(ctx, lr.Client, r.Host); tenant != nil {
		view.TenantName = tenant.Name
		if tenant.Branding != nil {
			view.Branding = *tenant.Branding
		}
	}
	h.render(w, "login.html", view)
}

// SubmitLogin handles POST /login. The tenant must be resolvable from the
// client metadata tag or the request hostname; credentials are then checked
// within that tenant only.
func (h *Handler) SubmitLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	challenge := r.PostFormValue("login_challenge")
	if challenge == "" {
		http.Error(w, "login_challenge is required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	lr, err := h.provider.GetLoginRequest(ctx, challenge)
	if err != nil {
		h.redirectError(w, r, err)
		return
	}

	var metadata map[string]any
	if lr.Client != nil {
		metadata = lr.Client.Metadata
	}
	tenant, err := h.tenants.Resolve(ctx, resolver.Hint{
		ClientMetadata: metadata,
		Hostname:       r.Host,
	})
	if err != nil {
		http.Error(w, "unable to determine tenant for this sign-in", http.StatusBadRequest)
		return
	}

	remember := r.PostFormValue("remember") == "true"
	result, err := h.users.Authenticate(ctx, tenant.ID,
		r.PostFormValue("username"), r.PostFormValue("password"), remember)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthenticated) || dErrors.HasCode(err, dErrors.CodeBadRequest) {
			// Back to the form with a generic error; never say which part
			// was wrong.
			h.countReject("login")
			http.Redirect(w, r, "/login?"+url.Values{
				"login_challenge": {challenge},
				"error":           {"Invalid username or password"},
			}.Encode(), http.StatusFound)
			return
		}
		h.redirectError(w, r, err)
		return
	}

	rememberFor := rememberForShort
	if remember {
		rememberFor = rememberForLong
	}
	completed, err := h.provider.AcceptLoginRequest(ctx, challenge, hydra.AcceptLogin{
		Subject:     result.User.ID.String(),
		Remember:    remember,
		RememberFor: rememberFor,
		Context: map[string]any{
			"email":     result.User.Email,
			"name":      result.User.DisplayName(),
			"tenant_id": tenant.ID.String(),
		},
	})
	if err != nil {
		h.redirectError(w, r, err)
		return
	}

	h.countAccept("login")
	h.logger.InfoContext(ctx, "login challenge accepted",
		"user_id", result.User.ID,
		"tenant_id", tenant.ID,
	)
	http.Redirect(w, r, completed.RedirectTo, http.StatusFound)
}

type consentView struct {
	Challenge  string
	ClientName string
	Subject    string
	Scopes     []string
	Branding   tenantmodels.Branding
}

// ShowConsent handles GET /consent. Skipped challenges are accepted with all
// requested scopes and the login session context.
func (h *Handler) ShowConsent(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("consent_challenge")
	if challenge == "" {
		http.Error(w, "consent_challenge is required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	cr, err := h.provider.GetConsentRequest(ctx, challenge)
	if err != nil {
		h.redirectError(w, r, err)
		return
	}

	if cr.Skip {
		completed, err := h.provider.AcceptConsentRequest(ctx, challenge, hydra.AcceptConsent{
			GrantScope:    cr.RequestedScope,
			GrantAudience: cr.RequestedAudience,
			Session:       sessionFromContext(cr.Context),
		})
		if err != nil {
			h.redirectError(w, r, err)
			return
		}
		h.countAccept("consent")
		http.Redirect(w, r, completed.RedirectTo, http.StatusFound)
		return
	}

	view := consentView{
		Challenge:  challenge,
		ClientName: "An application",
		Subject:    cr.Subject,
		Scopes:     cr.RequestedScope,
		Branding:   defaultBranding(),
	}
	if cr.Client != nil && cr.Client.ClientName != "" {
		view.ClientName = cr.Client.ClientName
	}
	if tenant := h.resolveForBranding(ctx, cr.Client, r.Host); tenant != nil && tenant.Branding != nil {
		view.Branding = *tenant.Branding
	}
	h.render(w, "consent.html", view)
}

// SubmitConsent handles POST /consent. When the user selects no scopes the
// grant defaults to everything requested.
func (h *Handler) SubmitConsent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	challenge := r.PostFormValue("consent_challenge")
	if challenge == "" {
		http.Error(w, "consent_challenge is required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	if r.PostFormValue("action") == "deny" {
		completed, err := h.provider.RejectConsentRequest(ctx, challenge, hydra.Reject{
			Error:            "access_denied",
			ErrorDescription: "The resource owner denied the request",
		})
		if err != nil {
			h.redirectError(w, r, err)
			return
		}
		h.countReject("consent")
		http.Redirect(w, r, completed.RedirectTo, http.StatusFound)
		return
	}

	cr, err := h.provider.GetConsentRequest(ctx, challenge)
	if err != nil {
		h.redirectError(w, r, err)
		return
	}

	granted := r.PostForm["scope"]
	if len(granted) == 0 {
		granted = cr.RequestedScope
	}
	completed, err := h.provider.AcceptConsentRequest(ctx, challenge, hydra.AcceptConsent{
		GrantScope:    granted,
		GrantAudience: cr.RequestedAudience,
		Session:       sessionFromContext(cr.Context),
	})
	if err != nil {
		h.redirectError(w, r, err)
		return
	}

	h.countAccept("consent")
	http.Redirect(w, r, completed.RedirectTo, http.StatusFound)
}

type logoutView struct {
	Challenge string
	Subject   string
}

// ShowLogout handles GET /logout. Confirmation is skipped by default.
func (h *Handler) ShowLogout(w http.ResponseWriter, r *http.Request) {
	challenge := r.URL.Query().Get("logout_challenge")
	if challenge == "" {
		http.Error(w, "logout_challenge is required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	lr, err := h.provider.GetLogoutRequest(ctx, challenge)
	if err != nil {
		h.redirectError(w, r, err)
		return
	}

	if h.logoutSkipConfirm {
		completed, err := h.provider.AcceptLogoutRequest(ctx, challenge)
		if err != nil {
			h.redirectError(w, r, err)
			return
		}
		h.countAccept("logout")
		http.Redirect(w, r, completed.RedirectTo, http.StatusFound)
		return
	}
	h.render(w, "logout.html", logoutView{Challenge: challenge, Subject: lr.Subject})
}

// SubmitLogout handles POST /logout.
func (h *Handler) SubmitLogout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	challenge := r.PostFormValue("logout_challenge")
	if challenge == "" {
		http.Error(w, "logout_challenge is required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	if r.PostFormValue("action") == "cancel" {
		if err := h.provider.RejectLogoutRequest(ctx, challenge); err != nil {
			h.redirectError(w, r, err)
			return
		}
		h.countReject("logout")
		// A rejected logout has no provider redirect; send the user home.
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	completed, err := h.provider.AcceptLogoutRequest(ctx, challenge)
	if err != nil {
		h.redirectError(w, r, err)
		return
	}
	h.countAccept("logout")
	http.Redirect(w, r, completed.RedirectTo, http.StatusFound)
}

type errorView struct {
	Error       string
	Description string
}

// ShowError handles GET /error, the terminal page for provider failures.
func (h *Handler) ShowError(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	h.render(w, "error.html", errorView{
		Error:       r.URL.Query().Get("error"),
		Description: r.URL.Query().Get("error_description"),
	})
}

// resolveForBranding looks up the tenant for UI customization. Failure is
// fine; the caller falls back to the generic branding.
func (h *Handler) resolveForBranding(ctx context.Context, client *hydra.OAuthClient, host string) *tenantmodels.Tenant {
	var metadata map[string]any
	if client != nil {
		metadata = client.Metadata
	}
	tenant, err := h.tenants.Resolve(ctx, resolver.Hint{
		ClientMetadata: metadata,
		Hostname:       host,
		BrandingOnly:   true,
	})
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			h.logger.WarnContext(ctx, "tenant resolution failed", "error", err)
		}
		return nil
	}
	return tenant
}

// sessionFromContext turns the login accept context into token claims so the
// tenant identity survives into access and ID tokens.
func sessionFromContext(loginCtx map[string]any) *hydra.ConsentSession {
	if len(loginCtx) == 0 {
		return nil
	}
	session := &hydra.ConsentSession{IDToken: map[string]any{}, AccessToken: map[string]any{}}
	for _, key := range []string{"email", "name", "tenant_id"} {
		if v, ok := loginCtx[key]; ok {
			session.IDToken[key] = v
		}
	}
	if v, ok := loginCtx["tenant_id"]; ok {
		session.AccessToken["tenant_id"] = v
	}
	return session
}

// redirectError sends the browser to the error page. Never a stack trace.
func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.ErrorContext(r.Context(), "challenge flow failed",
		"path", r.URL.Path,
		"error", err,
	)
	code := "server_error"
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		code = "invalid_request"
	} else if dErrors.HasCode(err, dErrors.CodeUpstream) {
		code = "temporarily_unavailable"
	}
	http.Redirect(w, r, "/error?"+url.Values{
		"error":             {code},
		"error_description": {dErrors.MessageOf(err)},
	}.Encode(), http.StatusFound)
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("template render failed", "template", name, "error", err)
	}
}

func (h *Handler) countAccept(flowName string) {
	if h.metrics != nil {
		h.metrics.ChallengeAccepts.WithLabelValues(flowName).Inc()
	}
}

func (h *Handler) countReject(flowName string) {
	if h.metrics != nil {
		h.metrics.ChallengeRejects.WithLabelValues(flowName).Inc()
	}
}

func defaultBranding() tenantmodels.Branding {
	b := tenantmodels.Branding{}
	b.ApplyDefaults()
	return b
}
