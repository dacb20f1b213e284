// Package errors provides the structured error type returned by HTTP
// handlers: a machine-readable code, a client-safe message, the HTTP status
// to answer with, and whether the caller may retry.
package errors
