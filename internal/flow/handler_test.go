package flow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ssoportal/internal/hydra"
	tenantmodels "ssoportal/internal/tenant/models"
	"ssoportal/internal/tenant/resolver"
	usermodels "ssoportal/internal/user/models"
	usersvc "ssoportal/internal/user/service"
	"ssoportal/pkg/domain"
	dErrors "ssoportal/pkg/domain-errors"
	"ssoportal/pkg/platform/sentinel"
)

type fakeProvider struct {
	loginRequest   *hydra.LoginRequest
	consentRequest *hydra.ConsentRequest
	logoutRequest  *hydra.LogoutRequest
	failWith       error

	acceptedLogin   *hydra.AcceptLogin
	acceptedConsent *hydra.AcceptConsent
	rejectedConsent *hydra.Reject
	logoutAccepted  bool
	logoutRejected  bool
}

const providerRedirect = "https://provider.test/continue?flow=42"

func (f *fakeProvider) GetLoginRequest(context.Context, string) (*hydra.LoginRequest, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.loginRequest, nil
}

func (f *fakeProvider) AcceptLoginRequest(_ context.Context, _ string, body hydra.AcceptLogin) (*hydra.Completed, error) {
	f.acceptedLogin = &body
	return &hydra.Completed{RedirectTo: providerRedirect}, nil
}

func (f *fakeProvider) RejectLoginRequest(context.Context, string, hydra.Reject) (*hydra.Completed, error) {
	return &hydra.Completed{RedirectTo: providerRedirect}, nil
}

func (f *fakeProvider) GetConsentRequest(context.Context, string) (*hydra.ConsentRequest, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.consentRequest, nil
}

func (f *fakeProvider) AcceptConsentRequest(_ context.Context, _ string, body hydra.AcceptConsent) (*hydra.Completed, error) {
	f.acceptedConsent = &body
	return &hydra.Completed{RedirectTo: providerRedirect}, nil
}

func (f *fakeProvider) RejectConsentRequest(_ context.Context, _ string, body hydra.Reject) (*hydra.Completed, error) {
	f.rejectedConsent = &body
	return &hydra.Completed{RedirectTo: providerRedirect}, nil
}

func (f *fakeProvider) GetLogoutRequest(context.Context, string) (*hydra.LogoutRequest, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.logoutRequest, nil
}

func (f *fakeProvider) AcceptLogoutRequest(context.Context, string) (*hydra.Completed, error) {
	f.logoutAccepted = true
	return &hydra.Completed{RedirectTo: providerRedirect}, nil
}

func (f *fakeProvider) RejectLogoutRequest(context.Context, string) error {
	f.logoutRejected = true
	return nil
}

type fakeAuthenticator struct {
	user     *usermodels.User
	password string
	lastCall struct {
		tenantID domain.TenantID
		remember bool
	}
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, tenantID domain.TenantID, username, plainPassword string, remember bool) (*usersvc.LoginResult, error) {
	f.lastCall.tenantID = tenantID
	f.lastCall.remember = remember
	if f.user == nil || !strings.EqualFold(f.user.Username, username) || plainPassword != f.password {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid credentials")
	}
	return &usersvc.LoginResult{User: f.user, Token: "token"}, nil
}

type fakeResolver struct {
	tenant *tenantmodels.Tenant
}

func (f *fakeResolver) Resolve(_ context.Context, hint resolver.Hint) (*tenantmodels.Tenant, error) {
	if f.tenant == nil {
		return nil, sentinel.ErrNotFound
	}
	return f.tenant, nil
}

type FlowSuite struct {
	suite.Suite
	provider *fakeProvider
	users    *fakeAuthenticator
	tenants  *fakeResolver
	handler  *Handler
	tenant   *tenantmodels.Tenant
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	tenant, err := tenantmodels.NewTenant(uuid.New(), "Acme", "login.acme.test", nil, nil, time.Now())
	s.Require().NoError(err)
	s.tenant = tenant

	user, err := usermodels.NewUser(uuid.New(), tenant.ID, "jdoe", "jdoe@acme.test", "secret-secret",
		map[string]any{"name": "Jane Doe"}, time.Now())
	s.Require().NoError(err)

	s.provider = &fakeProvider{
		loginRequest:   &hydra.LoginRequest{Challenge: "lc-1", RequestedScope: []string{"openid"}},
		consentRequest: &hydra.ConsentRequest{Challenge: "cc-1", Subject: user.ID.String(), RequestedScope: []string{"openid", "offline"}},
		logoutRequest:  &hydra.LogoutRequest{Challenge: "xc-1", Subject: user.ID.String()},
	}
	s.users = &fakeAuthenticator{user: user, password: "secret-secret"}
	s.tenants = &fakeResolver{tenant: tenant}
	s.handler = NewHandler(s.provider, s.users, s.tenants)
}

func (s *FlowSuite) get(path string, h http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Host = "login.acme.test"
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func (s *FlowSuite) postForm(path string, form url.Values, h http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Host = "login.acme.test"
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func (s *FlowSuite) TestShowLogin() {
	s.Run("missing challenge is a 400", func() {
		rec := s.get("/login", s.handler.ShowLogin)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("skip accepts immediately and redirects verbatim", func() {
		s.provider.loginRequest.Skip = true
		s.provider.loginRequest.Subject = "prior-subject"
		defer func() { s.provider.loginRequest.Skip = false }()

		rec := s.get("/login?login_challenge=lc-1", s.handler.ShowLogin)
		s.Equal(http.StatusFound, rec.Code)
		s.Equal(providerRedirect, rec.Header().Get("Location"))
		s.Require().NotNil(s.provider.acceptedLogin)
		s.Equal("prior-subject", s.provider.acceptedLogin.Subject)
		s.True(s.provider.acceptedLogin.Remember)
		s.Equal(rememberForShort, s.provider.acceptedLogin.RememberFor)
	})

	s.Run("renders the branded form", func() {
		rec := s.get("/login?login_challenge=lc-1", s.handler.ShowLogin)
		s.Equal(http.StatusOK, rec.Code)
		body := rec.Body.String()
		s.Contains(body, "Acme")
		s.Contains(body, `value="lc-1"`)
		s.Contains(body, tenantmodels.DefaultPrimaryColor)
	})

	s.Run("unknown tenant degrades to generic branding", func() {
		s.tenants.tenant = nil
		defer func() { s.tenants.tenant = s.tenant }()

		rec := s.get("/login?login_challenge=lc-1", s.handler.ShowLogin)
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "SSO Portal")
	})

	s.Run("provider failure redirects to the error page", func() {
		s.provider.failWith = dErrors.New(dErrors.CodeUpstream, "identity provider unreachable")
		defer func() { s.provider.failWith = nil }()

		rec := s.get("/login?login_challenge=lc-1", s.handler.ShowLogin)
		s.Equal(http.StatusFound, rec.Code)
		loc, err := url.Parse(rec.Header().Get("Location"))
		s.Require().NoError(err)
		s.Equal("/error", loc.Path)
		s.Equal("temporarily_unavailable", loc.Query().Get("error"))
	})
}

func (s *FlowSuite) TestSubmitLogin() {
	form := func() url.Values {
		return url.Values{
			"login_challenge": {"lc-1"},
			"username":        {"jdoe"},
			"password":        {"secret-secret"},
		}
	}

	s.Run("success accepts with subject and short session", func() {
		rec := s.postForm("/login", form(), s.handler.SubmitLogin)
		s.Equal(http.StatusFound, rec.Code)
		s.Equal(providerRedirect, rec.Header().Get("Location"))

		accepted := s.provider.acceptedLogin
		s.Require().NotNil(accepted)
		s.Equal(s.users.user.ID.String(), accepted.Subject)
		s.False(accepted.Remember)
		s.Equal(rememberForShort, accepted.RememberFor)
		s.Equal("jdoe@acme.test", accepted.Context["email"])
		s.Equal("Jane Doe", accepted.Context["name"])
		s.Equal(s.tenant.ID.String(), accepted.Context["tenant_id"])
	})

	s.Run("remember stretches the session window", func() {
		f := form()
		f.Set("remember", "true")
		rec := s.postForm("/login", f, s.handler.SubmitLogin)
		s.Equal(http.StatusFound, rec.Code)
		s.True(s.provider.acceptedLogin.Remember)
		s.Equal(rememberForLong, s.provider.acceptedLogin.RememberFor)
		s.True(s.users.lastCall.remember)
	})

	s.Run("authentication scoped to the resolved tenant", func() {
		s.postForm("/login", form(), s.handler.SubmitLogin)
		s.Equal(s.tenant.ID, s.users.lastCall.tenantID)
	})

	s.Run("bad credentials bounce back with a generic error", func() {
		f := form()
		f.Set("password", "wrong")
		rec := s.postForm("/login", f, s.handler.SubmitLogin)
		s.Equal(http.StatusFound, rec.Code)

		loc, err := url.Parse(rec.Header().Get("Location"))
		s.Require().NoError(err)
		s.Equal("/login", loc.Path)
		s.Equal("lc-1", loc.Query().Get("login_challenge"))
		s.NotEmpty(loc.Query().Get("error"))
	})

	s.Run("unresolvable tenant is a 400", func() {
		s.tenants.tenant = nil
		defer func() { s.tenants.tenant = s.tenant }()

		rec := s.postForm("/login", form(), s.handler.SubmitLogin)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing challenge is a 400", func() {
		f := form()
		f.Del("login_challenge")
		rec := s.postForm("/login", f, s.handler.SubmitLogin)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *FlowSuite) TestConsent() {
	s.Run("skip accepts all requested scopes with the session context", func() {
		s.provider.consentRequest.Skip = true
		s.provider.consentRequest.Context = map[string]any{"tenant_id": s.tenant.ID.String(), "email": "jdoe@acme.test"}
		defer func() { s.provider.consentRequest.Skip = false }()

		rec := s.get("/consent?consent_challenge=cc-1", s.handler.ShowConsent)
		s.Equal(http.StatusFound, rec.Code)

		accepted := s.provider.acceptedConsent
		s.Require().NotNil(accepted)
		s.Equal([]string{"openid", "offline"}, accepted.GrantScope)
		s.Require().NotNil(accepted.Session)
		s.Equal(s.tenant.ID.String(), accepted.Session.AccessToken["tenant_id"])
		s.Equal("jdoe@acme.test", accepted.Session.IDToken["email"])
	})

	s.Run("renders the scope list", func() {
		rec := s.get("/consent?consent_challenge=cc-1", s.handler.ShowConsent)
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "openid")
		s.Contains(rec.Body.String(), "offline")
	})

	s.Run("deny rejects with access_denied", func() {
		rec := s.postForm("/consent", url.Values{
			"consent_challenge": {"cc-1"},
			"action":            {"deny"},
		}, s.handler.SubmitConsent)
		s.Equal(http.StatusFound, rec.Code)
		s.Require().NotNil(s.provider.rejectedConsent)
		s.Equal("access_denied", s.provider.rejectedConsent.Error)
	})

	s.Run("allow with no selection grants everything requested", func() {
		rec := s.postForm("/consent", url.Values{
			"consent_challenge": {"cc-1"},
			"action":            {"allow"},
		}, s.handler.SubmitConsent)
		s.Equal(http.StatusFound, rec.Code)
		s.Equal([]string{"openid", "offline"}, s.provider.acceptedConsent.GrantScope)
	})

	s.Run("allow with a selection grants only it", func() {
		rec := s.postForm("/consent", url.Values{
			"consent_challenge": {"cc-1"},
			"action":            {"allow"},
			"scope":             {"openid"},
		}, s.handler.SubmitConsent)
		s.Equal(http.StatusFound, rec.Code)
		s.Equal([]string{"openid"}, s.provider.acceptedConsent.GrantScope)
	})
}

func (s *FlowSuite) TestLogout() {
	s.Run("confirmation skipped by default", func() {
		rec := s.get("/logout?logout_challenge=xc-1", s.handler.ShowLogout)
		s.Equal(http.StatusFound, rec.Code)
		s.Equal(providerRedirect, rec.Header().Get("Location"))
		s.True(s.provider.logoutAccepted)
	})

	s.Run("confirmation page when configured", func() {
		h := NewHandler(s.provider, s.users, s.tenants, WithLogoutConfirmation())
		rec := s.get("/logout?logout_challenge=xc-1", h.ShowLogout)
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "Sign out")
	})

	s.Run("cancel rejects and goes home", func() {
		rec := s.postForm("/logout", url.Values{
			"logout_challenge": {"xc-1"},
			"action":           {"cancel"},
		}, s.handler.SubmitLogout)
		s.Equal(http.StatusFound, rec.Code)
		s.Equal("/", rec.Header().Get("Location"))
		s.True(s.provider.logoutRejected)
	})

	s.Run("confirm accepts and redirects", func() {
		rec := s.postForm("/logout", url.Values{
			"logout_challenge": {"xc-1"},
			"action":           {"confirm"},
		}, s.handler.SubmitLogout)
		s.Equal(http.StatusFound, rec.Code)
		s.Equal(providerRedirect, rec.Header().Get("Location"))
	})
}

func (s *FlowSuite) TestShowError() {
	rec := s.get("/error?error=access_denied&error_description=nope", s.handler.ShowError)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "access_denied")
	s.Contains(rec.Body.String(), "nope")
}
