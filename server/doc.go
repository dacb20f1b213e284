// Package server provides the HTTP server: a gin engine mounted on a
// ServeMux, wrapped in the standard middleware chain and served over HTTP/1.1
// and h2c.
//
// The server follows the component pattern so the bootstrap registry starts
// and stops it alongside the SSE hub and telemetry.
//
// # Middleware
//
// Handler-level middleware (server/middleware) wraps every request:
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: request ID generation and propagation
//   - CORS: cross-origin resource sharing
//   - BodySizeLimit: request body size limits
//   - RequestLogger: request logging with duration
//
// Gin middleware is applied per route group:
//
//   - Metrics: OpenTelemetry request counters and durations
//   - Session: session cookie gate in front of the dashboard and API
//   - RateLimit: per-client token buckets
//
// # Endpoints
//
// Built-in endpoints (server/endpoint): /health, /info, /metrics, /alive and
// /ready.
package server
