package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/qprofile/resilience"
)

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users" {
			t.Errorf("expected /api/users, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("expected Accept application/json, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":1,"username":"user1"}]`)
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL})

	var users []struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := c.GetJSON(context.Background(), "/api/users", &users); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(users) != 1 || users[0].Username != "user1" {
		t.Errorf("unexpected users: %+v", users)
	}
}

func TestClient_GetJSON_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>login</html>`)
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL})

	var out []any
	err := c.GetJSON(context.Background(), "/api/users", &out)
	if !IsKind(err, KindDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestClient_Do_FormBodyAndCookieJar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
				t.Errorf("unexpected content type %q", ct)
			}
			if err := r.ParseForm(); err != nil || r.PostForm.Get("password") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "token", Path: "/"})
			http.Redirect(w, r, "/", http.StatusSeeOther)
		case "/api/users":
			if _, err := r.Cookie("session"); err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, `[]`)
		}
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, CookieJar: true})
	ctx := context.Background()

	var before []any
	if err := c.GetJSON(ctx, "/api/users", &before); !IsAuth(err) {
		t.Fatalf("expected auth error before login, got %v", err)
	}

	resp, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/login",
		Body:   url.Values{"password": {"secret"}},
	})
	if !IsKind(err, KindRedirect) {
		t.Fatalf("expected unfollowed redirect, got %v", err)
	}
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("expected 303, got %d", resp.StatusCode)
	}
	if len(c.Cookies()) != 1 {
		t.Fatalf("expected session cookie in jar, got %v", c.Cookies())
	}

	var after []any
	if err := c.GetJSON(ctx, "/api/users", &after); err != nil {
		t.Fatalf("expected access after login, got %v", err)
	}
}

func TestClient_Do_FollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, FollowRedirects: true})
	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/old"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after redirect, got %d", resp.StatusCode)
	}
}

func TestClient_Do_HeadersAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Client"); got != "watch" {
			t.Errorf("expected X-Client=watch, got %q", got)
		}
		if got := r.Header.Get("X-Trace"); got != "override" {
			t.Errorf("expected request header to win, got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "10" {
			t.Errorf("expected limit=10, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newClient(t, Config{
		BaseURL: srv.URL + "/",
		Headers: map[string]string{"X-Client": "watch", "X-Trace": "default"},
	})
	_, err := c.Do(context.Background(), Request{
		Method:  http.MethodGet,
		Path:    "/api/users",
		Headers: map[string]string{"X-Trace": "override"},
		Query:   map[string]string{"limit": "10"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_Do_ErrorClassification(t *testing.T) {
	tests := []struct {
		code int
		kind Kind
	}{
		{401, KindAuth},
		{403, KindAuth},
		{404, KindNotFound},
		{409, KindRejected},
		{429, KindRateLimit},
		{500, KindServer},
		{503, KindServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("HTTP_%d", tt.code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				fmt.Fprint(w, `{"error":{"code":"X"}}`)
			}))
			defer srv.Close()

			c := newClient(t, Config{BaseURL: srv.URL})
			resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
			if !IsKind(err, tt.kind) {
				t.Errorf("error classification failed for HTTP %d: %v", tt.code, err)
			}
			if resp == nil || resp.StatusCode != tt.code {
				t.Errorf("expected response with status %d, got %+v", tt.code, resp)
			}
		})
	}
}

func TestClient_Do_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := newClient(t, Config{BaseURL: addr, Timeout: time.Second})
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if !IsKind(err, KindConnection) {
		t.Errorf("expected connection error, got %v", err)
	}
}

func TestClient_Do_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newClient(t, Config{BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/"})
	if !IsKind(err, KindTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestClient_Do_Retry(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = 3
	retryCfg.InitialBackoff = 5 * time.Millisecond
	retryCfg.RetryIf = IsRetryable

	c := newClient(t, Config{BaseURL: srv.URL, Retry: &retryCfg})
	var out []any
	if err := c.GetJSON(context.Background(), "/", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestClient_Do_RetrySkipsAuthErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, Retry: DefaultRetryConfig()})
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if !IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

func TestClient_DoStream_SSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n: heartbeat 1\n\nid: 0\nevent: user_created\ndata: {\"id\":1}\n\n")
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL})
	stream, err := c.DoStream(context.Background(), Request{Method: http.MethodGet, Path: "/events"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	if stream.SSE == nil {
		t.Fatal("expected SSE reader")
	}

	first, err := stream.SSE.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Event != "connected" {
		t.Errorf("first event = %q, want connected", first.Event)
	}

	second, err := stream.SSE.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Event != "user_created" || second.ID != "0" || second.Data != `{"id":1}` {
		t.Errorf("unexpected second frame: %+v", second)
	}
}

func TestClient_DoStream_NonSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprint(w, "{}\n")
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL})
	stream, err := c.DoStream(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()
	if stream.SSE != nil || stream.Body == nil {
		t.Errorf("expected raw body stream, got %+v", stream)
	}
}

func TestClient_DoStream_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"UNAUTHORIZED"}}`)
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL})
	_, err := c.DoStream(context.Background(), Request{Method: http.MethodGet, Path: "/events"})
	if !IsAuth(err) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestResponse_Helpers(t *testing.T) {
	if r := (&Response{StatusCode: 201}); !r.IsSuccess() || r.IsError() {
		t.Error("201 should be success")
	}
	if r := (&Response{StatusCode: 503}); r.IsSuccess() || !r.IsError() {
		t.Error("503 should be error")
	}
}
