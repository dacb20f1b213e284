package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies a failed request.
type Kind string

const (
	KindRequest    Kind = "request"    // the request could not be built
	KindTimeout    Kind = "timeout"    // deadline or cancellation before a response
	KindConnection Kind = "connection" // dial, DNS or read failure
	KindRedirect   Kind = "redirect"   // 3xx not followed
	KindAuth       Kind = "auth"       // 401 or 403
	KindNotFound   Kind = "not_found"  // 404
	KindRateLimit  Kind = "rate_limit" // 429
	KindRejected   Kind = "rejected"   // any other 4xx
	KindServer     Kind = "server"     // 5xx
	KindDecode     Kind = "decode"     // 2xx body that is not the expected JSON
)

// Error is a classified request failure.
type Error struct {
	Kind Kind
	// StatusCode is 0 when no response arrived.
	StatusCode int
	Message    string
	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindRateLimit, KindServer:
		return true
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

// IsAuth reports whether the server refused the session.
func IsAuth(err error) bool { return IsKind(err, KindAuth) }

// IsRetryable reports whether err is a classified, retryable failure.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// RetryAfter returns the server's Retry-After hint carried by err.
func RetryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

func requestError(what string, err error) *Error {
	return &Error{Kind: KindRequest, Message: fmt.Sprintf("%s: %v", what, err), Err: err}
}

func decodeError(err error) *Error {
	return &Error{Kind: KindDecode, Message: err.Error(), Err: err}
}

// transportError classifies a failure that produced no response. A done
// ctx makes it a timeout.
func transportError(ctx context.Context, err error) *Error {
	kind := KindConnection
	if ctx.Err() != nil {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// statusError classifies a non-2xx response. It returns nil for 2xx.
func statusError(resp *http.Response, body []byte) *Error {
	code := resp.StatusCode
	if code >= 200 && code < 300 {
		return nil
	}

	e := &Error{StatusCode: code, Message: http.StatusText(code), Body: body}
	switch {
	case code >= 300 && code < 400:
		e.Kind = KindRedirect
		if loc := resp.Header.Get("Location"); loc != "" {
			e.Message += " to " + loc
		}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		e.Kind = KindAuth
	case code == http.StatusNotFound:
		e.Kind = KindNotFound
	case code == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	case code >= 400 && code < 500:
		e.Kind = KindRejected
	default:
		e.Kind = KindServer
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return e
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
