package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/qprofile/auth"
	"github.com/kbukum/qprofile/bootstrap"
	"github.com/kbukum/qprofile/config"
	"github.com/kbukum/qprofile/httpclient"
	"github.com/kbukum/qprofile/internal/reconciler"
	"github.com/kbukum/qprofile/internal/user"
	"github.com/kbukum/qprofile/logger"
	"github.com/kbukum/qprofile/sse"
)

const testPassword = "integration-pass"

func testConfig() *Config {
	return &Config{
		ServiceConfig: config.ServiceConfig{Environment: config.EnvDevelopment},
		SSE:           sse.Config{PollInterval: 10 * time.Millisecond, HeartbeatInterval: time.Second},
		Auth: auth.Config{
			AdminPassword: testPassword,
			SecretKey:     "integration-secret-key-000",
			BcryptCost:    4,
		},
	}
}

// newTestApp serves the app's handler chain without binding a port.
func newTestApp(t *testing.T, cfg *Config) (*App, *httptest.Server) {
	t.Helper()
	a, err := New(cfg, bootstrap.WithLogger(logger.NewDefault("test")), bootstrap.WithSummaryOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	srv := httptest.NewServer(a.Server.Handler())
	t.Cleanup(func() {
		_ = a.Events.Stop(context.Background())
		srv.Close()
	})
	return a, srv
}

func TestConfig_Defaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ServiceName, cfg.Name)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "/events", cfg.SSE.Path)
	assert.Equal(t, sse.DefaultCapacity, cfg.SSE.Capacity)
	assert.True(t, cfg.Auth.IsEnabled())
	assert.Equal(t, 5, cfg.LoginLimit.Attempts)
	assert.InDelta(t, 1.0/12, cfg.LoginLimit.Rate(), 1e-9)
}

func TestConfig_RejectsDevelopmentCredentialsInProduction(t *testing.T) {
	t.Setenv(auth.EnvAdminPassword, "")
	t.Setenv(auth.EnvSecretKey, "")

	cfg := &Config{ServiceConfig: config.ServiceConfig{Environment: config.EnvProduction}}
	cfg.ApplyDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), auth.EnvAdminPassword)

	t.Setenv(auth.EnvAdminPassword, "prod-password")
	t.Setenv(auth.EnvSecretKey, "prod-secret-key-0123456789")
	cfg = &Config{ServiceConfig: config.ServiceConfig{Environment: config.EnvProduction}}
	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate())

	disabled := false
	t.Setenv(auth.EnvAdminPassword, "")
	cfg = &Config{
		ServiceConfig: config.ServiceConfig{Environment: config.EnvProduction},
		Auth:          auth.Config{Enabled: &disabled},
	}
	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate())
}

func TestApp_HealthIsPublic(t *testing.T) {
	_, srv := newTestApp(t, testConfig())

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, ServiceName, body["service"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestApp_APIRequiresSession(t *testing.T) {
	_, srv := newTestApp(t, testConfig())

	for _, path := range []string{"/api/users", "/api/streams", "/events"} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, http.NoBody)
		require.NoError(t, err)
		req.Header.Set("Accept", "text/event-stream")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestApp_CRUDOverHTTP(t *testing.T) {
	_, srv := newTestApp(t, testConfig())
	ctx := context.Background()

	client, err := httpclient.New(httpclient.Config{BaseURL: srv.URL, CookieJar: true})
	require.NoError(t, err)
	require.NoError(t, reconciler.Login(ctx, client, testPassword))

	resp, err := client.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/api/users", Body: map[string]string{"username": "ada"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = client.Do(ctx, httpclient.Request{Method: http.MethodPost, Path: "/api/users", Body: map[string]string{"username": "ada"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/api/users/1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"User deleted","id":1}`, string(resp.Body))

	resp, err = client.Do(ctx, httpclient.Request{Method: http.MethodDelete, Path: "/api/users"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApp_ReconcilerFollowsLiveChanges(t *testing.T) {
	a, srv := newTestApp(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := reconciler.New(reconciler.Config{
		BaseURL:           srv.URL,
		Password:          testPassword,
		PollInterval:      20 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		ReconnectInterval: time.Hour,
	})
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.State() == reconciler.StateSSEConnected }, 3*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return a.Events.Hub().Count() == 1 }, 3*time.Second, 5*time.Millisecond)

	client, err := httpclient.New(httpclient.Config{BaseURL: srv.URL, CookieJar: true})
	require.NoError(t, err)
	require.NoError(t, reconciler.Login(ctx, client, testPassword))
	var st sse.Status
	require.NoError(t, client.GetJSON(ctx, "/api/streams", &st))
	assert.Equal(t, 1, st.Streams)
	require.Len(t, st.Connections, 1)
	assert.Equal(t, st.Next, st.Connections[0].Cursor)

	u, err := a.Users.Create(ctx, user.CreateRequest{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.Table().Has(u.ID) }, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, a.Users.Delete(ctx, u.ID))
	require.Eventually(t, func() bool { return r.Table().Len() == 0 }, 3*time.Second, 5*time.Millisecond)

	// Shutting the stream down drops the client to polling.
	require.NoError(t, a.Events.Stop(ctx))
	require.Eventually(t, func() bool { return r.State() == reconciler.StatePolling }, 3*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}
