package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spec-kit/courier-portal/internal/config"
	"github.com/spec-kit/courier-portal/internal/domain"
)

const maxResponseBytes = 256 * 1024

const (
	msgLoginFailed        = "Login failed"
	msgRegistrationFailed = "Registration failed"
	msgRefreshFailed      = "Refresh failed"
)

// LoginError is a rejected or failed credential exchange. Message is safe
// to show to the person who submitted the form.
type LoginError struct {
	Message string
	Status  int
	Err     error
}

func (e *LoginError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// Grant is what a successful credential exchange yields. User is always set
// for logins and registrations; a refresh leaves it nil when the backend
// sends no record.
type Grant struct {
	AccessToken  string
	RefreshToken string
	User         *domain.User
}

type authResponse struct {
	Success      bool           `json:"success"`
	Message      string         `json:"message"`
	Error        string         `json:"error"`
	Token        string         `json:"token"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         map[string]any `json:"user"`
	Agent        map[string]any `json:"agent"`
}

func (r authResponse) message(fallback string) string {
	for _, m := range []string{r.Message, r.Error} {
		if strings.TrimSpace(m) != "" {
			return m
		}
	}
	return fallback
}

func (r authResponse) accessToken() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}

func (r authResponse) record() map[string]any {
	if r.User != nil {
		return r.User
	}
	return r.Agent
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Endpoints  Endpoints
	HTTPClient *http.Client
	Breaker    *gobreaker.Settings
	Logger     *zap.Logger
}

// Client talks to the backend's login, registration and refresh endpoints.
// It must be given a transport that does not itself refresh sessions.
type Client struct {
	baseURL   string
	endpoints Endpoints
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

// New builds a client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		endpoints: opts.Endpoints,
		http:      httpClient,
		logger:    logger,
	}
	if opts.Breaker != nil {
		c.breaker = gobreaker.NewCircuitBreaker(*opts.Breaker)
	}
	return c
}

// NewFromConfig wires a client from backend configuration.
func NewFromConfig(cfg config.BackendConfig, logger *zap.Logger) *Client {
	maxFailures := uint32(cfg.BreakerMaxFailures)
	settings := &gobreaker.Settings{
		Name:    "courier-backend-auth",
		Timeout: time.Duration(cfg.BreakerOpenSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return maxFailures > 0 && counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("backend breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return New(Options{
		BaseURL: cfg.BaseURL,
		Endpoints: Endpoints{
			AdminLogin:         cfg.AdminLoginPath,
			StaffLogin:         cfg.StaffLoginPath,
			CustomerLogin:      cfg.CustomerLoginPath,
			DeliveryAgentLogin: cfg.DeliveryAgentLoginPath,
			Register:           cfg.RegisterPath,
			Refresh:            cfg.RefreshPath,
		},
		HTTPClient: &http.Client{Timeout: cfg.Timeout()},
		Breaker:    settings,
		Logger:     logger,
	})
}

// BaseURL returns the backend root every relative API path is joined to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsAuthEndpoint reports whether path is one of the credential exchange
// endpoints. Responses from those must never trigger a session refresh.
func (c *Client) IsAuthEndpoint(path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, ep := range c.endpoints.all() {
		if ep == "" {
			continue
		}
		if strings.HasSuffix(path, strings.TrimSuffix(ep, "/")) {
			return true
		}
	}
	return false
}

// Login exchanges credentials for a session grant.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Grant, error) {
	if creds == nil {
		return nil, &LoginError{Message: msgLoginFailed, Err: errors.New("no credentials")}
	}
	grant, err := c.exchange(ctx, creds.endpoint(c.endpoints), creds, creds.Identity(), msgLoginFailed)
	if err != nil {
		return nil, err
	}
	if grant.User == nil {
		grant.User = &domain.User{}
	}
	grant.User.UserType = creds.Identity()
	return grant, nil
}

// Register creates a customer account and returns its session grant.
func (c *Client) Register(ctx context.Context, reg CustomerRegistration) (*Grant, error) {
	grant, err := c.exchange(ctx, c.endpoints.Register, reg, domain.IdentityCustomer, msgRegistrationFailed)
	if err != nil {
		return nil, err
	}
	if grant.User == nil {
		grant.User = &domain.User{}
	}
	grant.User.UserType = domain.IdentityCustomer
	return grant, nil
}

// Refresh mints a new access token. fallback is the identity assumed when
// the returned user record has no usable userType.
func (c *Client) Refresh(ctx context.Context, refreshToken string, fallback domain.IdentityType) (*Grant, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, &LoginError{Message: msgRefreshFailed, Err: errors.New("no refresh token")}
	}
	body := map[string]string{"refreshToken": refreshToken}
	return c.exchange(ctx, c.endpoints.Refresh, body, fallback, msgRefreshFailed)
}

func (c *Client) exchange(ctx context.Context, path string, payload any, identity domain.IdentityType, failMsg string) (*Grant, error) {
	status, resp, err := c.post(ctx, path, payload)
	if err != nil {
		c.logger.Warn("credential exchange failed", zap.String("path", path), zap.Error(err))
		return nil, &LoginError{Message: failMsg, Status: status, Err: err}
	}
	if status < 200 || status >= 300 || !resp.Success {
		return nil, &LoginError{Message: resp.message(failMsg), Status: status}
	}

	access := resp.accessToken()
	if access == "" {
		return nil, &LoginError{Message: failMsg, Status: status, Err: errors.New("response carried no access token")}
	}

	return &Grant{
		AccessToken:  access,
		RefreshToken: resp.RefreshToken,
		User:         domain.UserFromRecord(resp.record(), identity),
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (int, authResponse, error) {
	if c.breaker == nil {
		return c.roundTrip(ctx, path, payload)
	}

	var status int
	var resp authResponse
	_, err := c.breaker.Execute(func() (interface{}, error) {
		var rtErr error
		status, resp, rtErr = c.roundTrip(ctx, path, payload)
		if rtErr == nil && status >= http.StatusInternalServerError {
			// count upstream failures toward tripping, keep the body for the caller
			return nil, errUpstream
		}
		return nil, rtErr
	})
	if errors.Is(err, errUpstream) {
		return status, resp, nil
	}
	return status, resp, err
}

var errUpstream = errors.New("upstream error")

func (c *Client) roundTrip(ctx context.Context, path string, payload any) (int, authResponse, error) {
	var out authResponse

	b, err := json.Marshal(payload)
	if err != nil {
		return 0, out, fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return 0, out, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return 0, out, fmt.Errorf("post %s: %w", path, err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return res.StatusCode, out, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(body)) > 0 {
		// non-JSON error pages leave out empty; the caller falls back to a generic message
		_ = json.Unmarshal(body, &out)
	}
	return res.StatusCode, out, nil
}
