// Package httpclient provides the HTTP client used by dashboard consumers:
// JSON requests with optional retry, a cookie jar for the session gate, and
// Server-Sent Events streaming.
//
// # Basic Usage
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL:   "http://localhost:5000",
//	    CookieJar: true,
//	    Retry:     httpclient.DefaultRetryConfig(),
//	})
//
//	var users []user.User
//	err = client.GetJSON(ctx, "/api/users", &users)
//
// # Streaming
//
//	stream, err := client.DoStream(ctx, httpclient.Request{Method: http.MethodGet, Path: "/events"})
//	defer stream.Close()
//	for {
//	    frame, err := stream.SSE.Next()
//	    ...
//	}
//
// # Errors
//
// Failures are *Error values classified by Kind. IsRetryable drives Retry,
// and RetryAfter exposes a 429 or 5xx response's Retry-After hint.
package httpclient
