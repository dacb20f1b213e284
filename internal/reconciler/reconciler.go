package reconciler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/kbukum/qprofile/httpclient"
	"github.com/kbukum/qprofile/internal/user"
	"github.com/kbukum/qprofile/logger"
	"github.com/kbukum/qprofile/resilience"
	"github.com/kbukum/qprofile/sse"
)

// State is the connection state shown next to the table.
type State string

const (
	StateSSEConnected State = "sse_connected"
	StateDisconnected State = "disconnected"
	StatePolling      State = "polling"
)

// Snapshot is the view handed to OnChange callbacks.
type Snapshot struct {
	State     State
	Rows      []user.User
	LastError error
	At        time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClient uses c instead of a client built from the config. c should keep
// cookies when the session gate is enabled.
func WithClient(c *httpclient.Client) Option {
	return func(r *Reconciler) { r.client = c }
}

// WithOnChange registers fn to run after every state or table change. fn runs
// on the Run goroutine and must not block.
func WithOnChange(fn func(Snapshot)) Option {
	return func(r *Reconciler) { r.onChange = fn }
}

// WithLogger overrides the component logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

// Reconciler mirrors the server's user table.
type Reconciler struct {
	cfg      Config
	client   *httpclient.Client
	table    *Table
	log      *logger.Logger
	onChange func(Snapshot)
	refocus  chan struct{}

	mu      sync.RWMutex
	state   State
	lastErr error
}

// New creates a Reconciler. It starts in the disconnected state.
func New(cfg Config, opts ...Option) (*Reconciler, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Reconciler{
		cfg:     cfg,
		table:   NewTable(),
		log:     logger.WithComponent("reconciler"),
		refocus: make(chan struct{}, 1),
		state:   StateDisconnected,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		c, err := httpclient.New(httpclient.Config{
			BaseURL:   cfg.BaseURL,
			Timeout:   cfg.RequestTimeout,
			CookieJar: true,
		})
		if err != nil {
			return nil, err
		}
		r.client = c
	}
	return r, nil
}

// Table returns the local table.
func (r *Reconciler) Table() *Table { return r.table }

// State returns the current connection state.
func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// LastError returns the most recent stream or fetch error, cleared by the
// next success.
func (r *Reconciler) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Refocus asks a polling reconciler to try the stream again now. It is a
// no-op while the stream is connected.
func (r *Reconciler) Refocus() {
	select {
	case r.refocus <- struct{}{}:
	default:
	}
}

// Run syncs until ctx is done. It returns nil on cancellation and an error
// only when login fails.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.login(ctx); err != nil {
		return err
	}

	retry := resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: r.cfg.PollInterval / 10,
		MaxBackoff:     r.cfg.PollInterval,
		RetryIf:        httpclient.IsRetryable,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			r.log.Warn("Initial fetch failed, retrying", map[string]interface{}{
				"attempt": attempt,
				"backoff": backoff.String(),
				"error":   err.Error(),
			})
		},
	}
	if err := resilience.RetryFunc(ctx, retry, func() error { return r.fetch(ctx) }); err != nil {
		r.setError(err)
	}

	for ctx.Err() == nil {
		err := r.stream(ctx)
		if ctx.Err() != nil {
			break
		}
		r.setState(StateDisconnected, err)
		r.reauthenticate(ctx, err)
		r.poll(ctx)
	}
	return nil
}

// stream follows the event stream until it ends.
func (r *Reconciler) stream(ctx context.Context) error {
	// Drop a refocus that arrived while the stream was up.
	select {
	case <-r.refocus:
	default:
	}

	resp, err := r.client.DoStream(ctx, httpclient.Request{
		Method:  http.MethodGet,
		Path:    r.cfg.EventsPath,
		Headers: map[string]string{"Accept": "text/event-stream"},
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Close() }()
	if resp.SSE == nil {
		return fmt.Errorf("reconciler: %s is not an event stream", r.cfg.EventsPath)
	}

	for {
		frame, err := resp.SSE.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if err := r.handleFrame(ctx, frame); err != nil {
			return err
		}
	}
}

func (r *Reconciler) handleFrame(ctx context.Context, f *sse.Frame) error {
	switch f.Kind() {
	case sse.KindConnected:
		r.setState(StateSSEConnected, nil)
		// A new stream starts at the head of the buffer; catch up first.
		return r.fetch(ctx)
	case sse.KindGap:
		r.log.Warn("Stream fell behind, resyncing", map[string]interface{}{"data": f.Data})
		return r.fetch(ctx)
	}

	ch, ok, err := ChangeFromFrame(f)
	if err != nil {
		r.log.Warn("Skipping malformed frame", map[string]interface{}{
			"event": f.Event,
			"error": err.Error(),
		})
		return nil
	}
	if ok && r.table.Apply(ch) {
		r.notify()
	}
	return nil
}

// poll fetches the full list until refocus, the reconnect timer or ctx.
// After a failure it waits for the backoff delay or the server's
// Retry-After, whichever is longer.
func (r *Reconciler) poll(ctx context.Context) {
	r.setState(StatePolling, r.LastError())

	backoff := resilience.NewBackoff(resilience.BackoffConfig{
		Initial: r.cfg.PollInterval,
		Max:     r.cfg.MaxBackoff,
		Factor:  2,
	})
	reconnect := time.NewTimer(r.cfg.ReconnectInterval)
	defer reconnect.Stop()

	var delay time.Duration
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-r.refocus:
			timer.Stop()
			r.log.Debug("Refocused, reconnecting stream")
			return
		case <-reconnect.C:
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := r.fetch(ctx); err != nil {
			r.setError(err)
			r.reauthenticate(ctx, err)
			delay = max(backoff.Next(), httpclient.RetryAfter(err))
			fields := map[string]interface{}{
				"failures":   backoff.Failures(),
				"next_delay": delay.String(),
				"error":      err.Error(),
			}
			if kind, ok := httpclient.KindOf(err); ok {
				fields["kind"] = string(kind)
			}
			r.log.Warn("Poll failed", fields)
			continue
		}
		backoff.Reset()
		delay = r.cfg.PollInterval
	}
}

// fetch replaces the table with the server's list.
func (r *Reconciler) fetch(ctx context.Context) error {
	var users []user.User
	if err := r.client.GetJSON(ctx, r.cfg.UsersPath, &users); err != nil {
		return err
	}
	r.table.Replace(users)
	r.setError(nil)
	return nil
}

func (r *Reconciler) login(ctx context.Context) error {
	if r.cfg.Password == "" {
		return nil
	}
	return Login(ctx, r.client, r.cfg.Password)
}

// reauthenticate logs in again after the session expired.
func (r *Reconciler) reauthenticate(ctx context.Context, err error) {
	if r.cfg.Password == "" || !httpclient.IsAuth(err) {
		return
	}
	if err := r.login(ctx); err != nil {
		r.log.Warn("Re-login failed", map[string]interface{}{"error": err.Error()})
	}
}

func (r *Reconciler) setState(s State, err error) {
	r.mu.Lock()
	changed := r.state != s
	r.state = s
	r.lastErr = err
	r.mu.Unlock()

	if changed {
		fields := map[string]interface{}{"state": string(s)}
		if err != nil {
			fields["error"] = err.Error()
		}
		r.log.Info("Connection state changed", fields)
	}
	r.notify()
}

func (r *Reconciler) setError(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
	r.notify()
}

func (r *Reconciler) notify() {
	if r.onChange == nil {
		return
	}
	r.mu.RLock()
	snap := Snapshot{State: r.state, LastError: r.lastErr, At: time.Now()}
	r.mu.RUnlock()
	snap.Rows = r.table.Rows()
	r.onChange(snap)
}

// Login posts password to /login so that client's cookie jar holds a
// session cookie.
func Login(ctx context.Context, client *httpclient.Client, password string) error {
	_, err := client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    "/login",
		Headers: map[string]string{"Accept": "application/json"},
		Body:    map[string]string{"password": password},
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}
