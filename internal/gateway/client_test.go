package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/courier-portal/internal/backendstub"
	"github.com/spec-kit/courier-portal/internal/domain"
)

func newStub(t *testing.T) (*backendstub.Server, *Client) {
	t.Helper()
	stub := backendstub.New(backendstub.Options{})
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)
	return stub, New(Options{BaseURL: srv.URL, Endpoints: DefaultEndpoints()})
}

func TestLogin_EachVariant(t *testing.T) {
	stub, c := newStub(t)
	ctx := context.Background()

	for _, tc := range []struct {
		creds       Credentials
		login       string
		wantRefresh bool
	}{
		{AdminCredentials{Username: "root", Password: "pw"}, "root", true},
		{StaffCredentials{Email: "ops@example.com", Password: "pw"}, "ops@example.com", false},
		{CustomerCredentials{Email: "cust@example.com", Password: "pw"}, "cust@example.com", true},
		{DeliveryAgentCredentials{Email: "rider@example.com", Password: "pw"}, "rider@example.com", true},
	} {
		_, err := stub.AddAccount(tc.creds.Identity(), tc.login, "pw", "Name")
		require.NoError(t, err)

		grant, err := c.Login(ctx, tc.creds)
		require.NoError(t, err, tc.creds.Identity())
		assert.NotEmpty(t, grant.AccessToken)
		assert.Equal(t, tc.wantRefresh, grant.RefreshToken != "")
		assert.Equal(t, tc.creds.Identity(), grant.User.UserType)
		assert.Equal(t, "Name", grant.User.Name)
	}
}

func TestLogin_RejectedCarriesBackendMessage(t *testing.T) {
	_, c := newStub(t)

	grant, err := c.Login(context.Background(), AdminCredentials{Username: "root", Password: "wrong"})
	assert.Nil(t, grant)

	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "Invalid credentials", le.Message)
	assert.Equal(t, http.StatusUnauthorized, le.Status)
}

func TestLogin_DefaultsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer srv.Close()
	c := New(Options{BaseURL: srv.URL, Endpoints: DefaultEndpoints()})

	_, err := c.Login(context.Background(), CustomerCredentials{Email: "a@b.c", Password: "x"})
	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "Login failed", le.Message)
}

func TestLogin_SuccessWithoutTokenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"user":{"name":"x"}}`))
	}))
	defer srv.Close()
	c := New(Options{BaseURL: srv.URL, Endpoints: DefaultEndpoints()})

	_, err := c.Login(context.Background(), CustomerCredentials{Email: "a@b.c", Password: "x"})
	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "Login failed", le.Message)
}

func TestLogin_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := New(Options{BaseURL: url, Endpoints: DefaultEndpoints()})

	_, err := c.Login(context.Background(), CustomerCredentials{Email: "a@b.c", Password: "x"})
	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "Login failed", le.Message)
	assert.Error(t, le.Err)
}

func TestRegister(t *testing.T) {
	_, c := newStub(t)

	grant, err := c.Register(context.Background(), CustomerRegistration{Name: "New", Email: "new@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, domain.IdentityCustomer, grant.User.UserType)

	_, err = c.Register(context.Background(), CustomerRegistration{Name: "New", Email: "new@example.com", Password: "secret1"})
	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "Email already registered", le.Message)
}

func TestRefresh(t *testing.T) {
	stub, c := newStub(t)
	acc, err := stub.AddAccount(domain.IdentityDeliveryAgent, "rider@example.com", "pw", "Rider")
	require.NoError(t, err)
	refresh, err := stub.Tokens().Issue(acc.ID, acc.UserType, backendstub.KindRefresh, time.Hour)
	require.NoError(t, err)

	grant, err := c.Refresh(context.Background(), refresh, domain.IdentityDeliveryAgent)
	require.NoError(t, err)
	assert.NotEmpty(t, grant.AccessToken)
	assert.Equal(t, domain.IdentityDeliveryAgent, grant.User.UserType)

	_, err = c.Refresh(context.Background(), "", domain.IdentityAdmin)
	assert.Error(t, err)
}

func TestIsAuthEndpoint(t *testing.T) {
	c := New(Options{BaseURL: "http://backend/api", Endpoints: DefaultEndpoints()})

	assert.True(t, c.IsAuthEndpoint("/api/auth/login"))
	assert.True(t, c.IsAuthEndpoint("/api/delivery-agent/login/"))
	assert.True(t, c.IsAuthEndpoint("/api/auth/refresh"))
	assert.False(t, c.IsAuthEndpoint("/api/shipments"))
}

func TestBreaker_OpensOnUpstreamFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"success":false,"message":"backend down"}`))
	}))
	defer srv.Close()

	c := New(Options{
		BaseURL:   srv.URL,
		Endpoints: DefaultEndpoints(),
		Breaker: &gobreaker.Settings{
			Name:        "test",
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 2 },
		},
	})
	ctx := context.Background()
	creds := CustomerCredentials{Email: "a@b.c", Password: "x"}

	for i := 0; i < 2; i++ {
		_, err := c.Login(ctx, creds)
		var le *LoginError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, "backend down", le.Message)
	}

	_, err := c.Login(ctx, creds)
	var le *LoginError
	require.ErrorAs(t, err, &le)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, "Login failed", le.Message)
	assert.EqualValues(t, 2, hits.Load())
}
