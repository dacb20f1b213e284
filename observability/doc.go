// Package observability wires OpenTelemetry tracing and metrics.
//
// The Component installs OTLP/HTTP trace and metric providers as the global
// providers when enabled and shuts them down on Stop. Instrumented code only
// uses the global API, so it runs unchanged (as no-ops) when telemetry is
// disabled.
//
//	ctx, op := observability.StartOperation(ctx, metrics, "users", "create")
//	user, err := store.Insert(...)
//	op.End(ctx, err)
package observability
