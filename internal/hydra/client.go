// Package hydra is a thin client for the external OAuth2 provider's admin
// API: challenge flows (login, consent, logout) and the OAuth client
// registry. The provider is tenant-unaware; tenancy rides in client metadata.
package hydra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ssoportal/internal/platform/metrics"
	dErrors "ssoportal/pkg/domain-errors"
)

// DefaultTimeout bounds every admin API call.
const DefaultTimeout = 5 * time.Second

// Client talks to the provider admin API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoginRequest is the provider's pending login challenge.
type LoginRequest struct {
	Challenge      string       `json:"challenge"`
	Skip           bool         `json:"skip"`
	Subject        string       `json:"subject"`
	RequestedScope []string     `json:"requested_scope"`
	RequestURL     string       `json:"request_url"`
	Client         *OAuthClient `json:"client,omitempty"`
}

// ConsentRequest is the provider's pending consent challenge.
type ConsentRequest struct {
	Challenge         string         `json:"challenge"`
	Skip              bool           `json:"skip"`
	Subject           string         `json:"subject"`
	RequestedScope    []string       `json:"requested_scope"`
	RequestedAudience []string       `json:"requested_access_token_audience"`
	Client            *OAuthClient   `json:"client,omitempty"`
	Context           map[string]any `json:"context,omitempty"`
}

// LogoutRequest is the provider's pending logout challenge.
type LogoutRequest struct {
	Challenge   string       `json:"challenge"`
	Subject     string       `json:"subject"`
	SessionID   string       `json:"sid"`
	RPInitiated bool         `json:"rp_initiated"`
	Client      *OAuthClient `json:"client,omitempty"`
}

// AcceptLogin completes a login challenge.
type AcceptLogin struct {
	Subject     string         `json:"subject"`
	Remember    bool           `json:"remember"`
	RememberFor int            `json:"remember_for"`
	Context     map[string]any `json:"context,omitempty"`
}

// ConsentSession is injected into the issued tokens.
type ConsentSession struct {
	AccessToken map[string]any `json:"access_token,omitempty"`
	IDToken     map[string]any `json:"id_token,omitempty"`
}

// AcceptConsent completes a consent challenge.
type AcceptConsent struct {
	GrantScope    []string        `json:"grant_scope"`
	GrantAudience []string        `json:"grant_access_token_audience,omitempty"`
	Remember      bool            `json:"remember"`
	RememberFor   int             `json:"remember_for"`
	Session       *ConsentSession `json:"session,omitempty"`
}

// Reject denies a challenge.
type Reject struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	StatusCode       int    `json:"status_code,omitempty"`
}

// Completed carries the provider-built URL the browser must be sent to.
// Redirect targets always come from here, never constructed locally.
type Completed struct {
	RedirectTo string `json:"redirect_to"`
}

func (c *Client) GetLoginRequest(ctx context.Context, challenge string) (*LoginRequest, error) {
	var out LoginRequest
	err := c.do(ctx, http.MethodGet, "/oauth2/auth/requests/login", url.Values{"login_challenge": {challenge}}, nil, &out)
	return &out, err
}

func (c *Client) AcceptLoginRequest(ctx context.Context, challenge string, body AcceptLogin) (*Completed, error) {
	var out Completed
	err := c.do(ctx, http.MethodPut, "/oauth2/auth/requests/login/accept", url.Values{"login_challenge": {challenge}}, body, &out)
	return &out, err
}

func (c *Client) RejectLoginRequest(ctx context.Context, challenge string, body Reject) (*Completed, error) {
	var out Completed
	err := c.do(ctx, http.MethodPut, "/oauth2/auth/requests/login/reject", url.Values{"login_challenge": {challenge}}, body, &out)
	return &out, err
}

func (c *Client) GetConsentRequest(ctx context.Context, challenge string) (*ConsentRequest, error) {
	var out ConsentRequest
	err := c.do(ctx, http.MethodGet, "/oauth2/auth/requests/consent", url.Values{"consent_challenge": {challenge}}, nil, &out)
	return &out, err
}

func (c *Client) AcceptConsentRequest(ctx context.Context, challenge string, body AcceptConsent) (*Completed, error) {
	var out Completed
	err := c.do(ctx, http.MethodPut, "/oauth2/auth/requests/consent/accept", url.Values{"consent_challenge": {challenge}}, body, &out)
	return &out, err
}

func (c *Client) RejectConsentRequest(ctx context.Context, challenge string, body Reject) (*Completed, error) {
	var out Completed
	err := c.do(ctx, http.MethodPut, "/oauth2/auth/requests/consent/reject", url.Values{"consent_challenge": {challenge}}, body, &out)
	return &out, err
}

func (c *Client) GetLogoutRequest(ctx context.Context, challenge string) (*LogoutRequest, error) {
	var out LogoutRequest
	err := c.do(ctx, http.MethodGet, "/oauth2/auth/requests/logout", url.Values{"logout_challenge": {challenge}}, nil, &out)
	return &out, err
}

func (c *Client) AcceptLogoutRequest(ctx context.Context, challenge string) (*Completed, error) {
	var out Completed
	err := c.do(ctx, http.MethodPut, "/oauth2/auth/requests/logout/accept", url.Values{"logout_challenge": {challenge}}, nil, &out)
	return &out, err
}

func (c *Client) RejectLogoutRequest(ctx context.Context, challenge string) error {
	return c.do(ctx, http.MethodPut, "/oauth2/auth/requests/logout/reject", url.Values{"logout_challenge": {challenge}}, nil, nil)
}

// OAuthClient mirrors the provider's client resource. Metadata carries the
// tenant tag.
type OAuthClient struct {
	ClientID      string         `json:"client_id,omitempty"`
	ClientName    string         `json:"client_name,omitempty"`
	ClientSecret  string         `json:"client_secret,omitempty"`
	RedirectURIs  []string       `json:"redirect_uris,omitempty"`
	GrantTypes    []string       `json:"grant_types,omitempty"`
	ResponseTypes []string       `json:"response_types,omitempty"`
	Scope         string         `json:"scope,omitempty"`
	Audience      []string       `json:"audience,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     *time.Time     `json:"created_at,omitempty"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty"`
}

func (c *Client) CreateClient(ctx context.Context, client *OAuthClient) (*OAuthClient, error) {
	var out OAuthClient
	err := c.do(ctx, http.MethodPost, "/clients", nil, client, &out)
	return &out, err
}

func (c *Client) GetClient(ctx context.Context, id string) (*OAuthClient, error) {
	var out OAuthClient
	err := c.do(ctx, http.MethodGet, "/clients/"+url.PathEscape(id), nil, nil, &out)
	return &out, err
}

func (c *Client) UpdateClient(ctx context.Context, id string, client *OAuthClient) (*OAuthClient, error) {
	var out OAuthClient
	err := c.do(ctx, http.MethodPut, "/clients/"+url.PathEscape(id), nil, client, &out)
	return &out, err
}

func (c *Client) DeleteClient(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/clients/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListClients(ctx context.Context, limit, offset int) ([]*OAuthClient, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	var out []*OAuthClient
	err := c.do(ctx, http.MethodGet, "/clients", query, nil, &out)
	return out, err
}

func (c *Client) RegenerateClientSecret(ctx context.Context, id string) (*OAuthClient, error) {
	var out OAuthClient
	err := c.do(ctx, http.MethodPost, "/clients/"+url.PathEscape(id)+"/regenerate-secret", nil, nil, &out)
	return &out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encode provider request")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build provider request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.countUpstreamError()
		c.logger.ErrorContext(ctx, "provider request failed",
			"method", method,
			"path", path,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeUpstream, "identity provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return dErrors.New(dErrors.CodeNotFound, "not found at identity provider")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.countUpstreamError()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.ErrorContext(ctx, "provider returned error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(snippet),
		)
		return dErrors.New(dErrors.CodeUpstream,
			fmt.Sprintf("identity provider returned status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.countUpstreamError()
		return dErrors.Wrap(err, dErrors.CodeUpstream, "decode provider response")
	}
	return nil
}

func (c *Client) countUpstreamError() {
	if c.metrics != nil {
		c.metrics.UpstreamErrors.Inc()
	}
}
