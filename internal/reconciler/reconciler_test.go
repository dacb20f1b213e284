package reconciler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/qprofile/httpclient"
	"github.com/kbukum/qprofile/internal/user"
	"github.com/kbukum/qprofile/sse"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

// testServer serves the user API and the event stream with switches to
// simulate outages.
type testServer struct {
	svc        *user.Service
	comp       *sse.Component
	srv        *httptest.Server
	eventsDown   atomic.Bool
	usersDown    atomic.Bool
	usersLimited atomic.Bool
	listCalls    atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		comp: sse.NewComponent(sse.Config{PollInterval: 10 * time.Millisecond, HeartbeatInterval: time.Second}),
	}
	store, err := user.NewStore()
	require.NoError(t, err)
	ts.svc = user.NewService(store, ts.comp.Publisher(), nil)

	engine := gin.New()
	api := engine.Group("/api/users")
	api.Use(func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			ts.listCalls.Add(1)
		}
		if ts.usersDown.Load() {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if ts.usersLimited.Load() {
			c.Header("Retry-After", "1")
			c.AbortWithStatus(http.StatusTooManyRequests)
		}
	})
	user.NewHandler(ts.svc).Register(api)

	mux := http.NewServeMux()
	mux.Handle("/api/", engine)
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		if ts.eventsDown.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		ts.comp.Handler().ServeHTTP(w, r)
	})
	ts.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		_ = ts.comp.Stop(context.Background())
		ts.srv.Close()
	})
	return ts
}

func startReconciler(t *testing.T, cfg Config, opts ...Option) *Reconciler {
	t.Helper()
	r, err := New(cfg, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			t.Error("Run did not return after cancel")
		}
	})
	return r
}

func fastConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		PollInterval:      10 * time.Millisecond,
		MaxBackoff:        40 * time.Millisecond,
		ReconnectInterval: time.Hour,
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{BaseURL: "http://localhost:5000"}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.MaxBackoff)
	assert.Equal(t, "/events", cfg.EventsPath)
	assert.Equal(t, "/api/users", cfg.UsersPath)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing url", Config{}},
		{"backoff below interval", Config{BaseURL: "http://x", PollInterval: time.Second, MaxBackoff: time.Millisecond}},
		{"negative reconnect", Config{BaseURL: "http://x", ReconnectInterval: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestReconciler_InitialFetchAndLiveEvents(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	_, err := ts.svc.Create(ctx, user.CreateRequest{Username: "existing"})
	require.NoError(t, err)

	r := startReconciler(t, fastConfig(ts.srv.URL))

	require.Eventually(t, func() bool { return r.State() == StateSSEConnected }, waitFor, tick)
	require.Eventually(t, func() bool { return r.Table().Has(1) }, waitFor, tick)

	created, err := ts.svc.Create(ctx, user.CreateRequest{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.Table().Has(created.ID) }, waitFor, tick)

	require.NoError(t, ts.svc.Delete(ctx, 1))
	require.Eventually(t, func() bool { return !r.Table().Has(1) }, waitFor, tick)

	assert.NoError(t, r.LastError())
	assert.Equal(t, StateSSEConnected, r.State())
}

func TestReconciler_FallsBackToPolling(t *testing.T) {
	ts := newTestServer(t)
	r := startReconciler(t, fastConfig(ts.srv.URL))
	require.Eventually(t, func() bool { return r.State() == StateSSEConnected }, waitFor, tick)

	ts.eventsDown.Store(true)
	require.NoError(t, ts.comp.Stop(context.Background()))

	require.Eventually(t, func() bool { return r.State() == StatePolling }, waitFor, tick)

	// Changes still arrive through the full-list poll.
	u, err := ts.svc.Create(context.Background(), user.CreateRequest{Username: "polled"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.Table().Has(u.ID) }, waitFor, tick)
}

func TestReconciler_RefocusReconnects(t *testing.T) {
	ts := newTestServer(t)
	ts.eventsDown.Store(true)

	r := startReconciler(t, fastConfig(ts.srv.URL))
	require.Eventually(t, func() bool { return r.State() == StatePolling }, waitFor, tick)

	ts.eventsDown.Store(false)
	// Still polling: nothing prompts a reconnect before the timer.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StatePolling, r.State())

	r.Refocus()
	require.Eventually(t, func() bool { return r.State() == StateSSEConnected }, waitFor, tick)
}

func TestReconciler_ReconnectIntervalRetriesStream(t *testing.T) {
	ts := newTestServer(t)
	ts.eventsDown.Store(true)

	cfg := fastConfig(ts.srv.URL)
	cfg.ReconnectInterval = 30 * time.Millisecond
	r := startReconciler(t, cfg)
	require.Eventually(t, func() bool { return r.State() == StatePolling }, waitFor, tick)

	ts.eventsDown.Store(false)
	require.Eventually(t, func() bool { return r.State() == StateSSEConnected }, waitFor, tick)
}

func TestReconciler_PollBacksOffOnFailures(t *testing.T) {
	ts := newTestServer(t)
	ts.eventsDown.Store(true)
	ts.usersDown.Store(true)

	r := startReconciler(t, fastConfig(ts.srv.URL))
	require.Eventually(t, func() bool { return r.State() == StatePolling }, waitFor, tick)

	start := ts.listCalls.Load()
	time.Sleep(300 * time.Millisecond)
	calls := ts.listCalls.Load() - start

	// Without backoff a 10ms interval would give about 30 calls; capped at
	// 40ms it stays well below that.
	assert.Less(t, calls, int32(15))
	assert.GreaterOrEqual(t, calls, int32(3))
	assert.True(t, httpclient.IsKind(r.LastError(), httpclient.KindServer), "got %v", r.LastError())

	ts.usersDown.Store(false)
	require.Eventually(t, func() bool { return r.LastError() == nil }, waitFor, tick)
}

func TestReconciler_PollHonorsRetryAfter(t *testing.T) {
	ts := newTestServer(t)
	ts.eventsDown.Store(true)
	ts.usersLimited.Store(true)

	r := startReconciler(t, fastConfig(ts.srv.URL))
	// Three attempts for the initial fetch, then the first poll.
	require.Eventually(t, func() bool {
		return r.State() == StatePolling && ts.listCalls.Load() >= 4
	}, waitFor, tick)

	start := ts.listCalls.Load()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, start, ts.listCalls.Load(), "polled again before Retry-After elapsed")
	assert.True(t, httpclient.IsKind(r.LastError(), httpclient.KindRateLimit), "got %v", r.LastError())
	assert.Equal(t, time.Second, httpclient.RetryAfter(r.LastError()))
}

func TestReconciler_OnChange(t *testing.T) {
	ts := newTestServer(t)

	var mu sync.Mutex
	var snaps []Snapshot
	r := startReconciler(t, fastConfig(ts.srv.URL), WithOnChange(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	}))
	require.Eventually(t, func() bool { return r.State() == StateSSEConnected }, waitFor, tick)

	_, err := ts.svc.Create(context.Background(), user.CreateRequest{Username: "watched"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		if len(snaps) == 0 {
			return false
		}
		last := snaps[len(snaps)-1]
		return len(last.Rows) == 1 && last.Rows[0].Username == "watched"
	}, waitFor, tick)
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path != "/login" || body.Password != "admin123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "qprofile_session", Value: "t", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	client, err := httpclient.New(httpclient.Config{BaseURL: srv.URL, CookieJar: true})
	require.NoError(t, err)

	err = Login(context.Background(), client, "wrong")
	assert.True(t, httpclient.IsAuth(err), "got %v", err)
	assert.Empty(t, client.Cookies())

	require.NoError(t, Login(context.Background(), client, "admin123"))
	assert.Len(t, client.Cookies(), 1)
}

func TestReconciler_RunFailsOnBadPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := fastConfig(srv.URL)
	cfg.Password = "nope"
	r, err := New(cfg)
	require.NoError(t, err)

	err = r.Run(context.Background())
	assert.True(t, httpclient.IsAuth(err), "got %v", err)
}
