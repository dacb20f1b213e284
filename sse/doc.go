// Package sse provides the live update channel of the dashboard: a bounded,
// ordered event buffer, a publisher that appends to it, a hub tracking every
// open stream and its cursor, and the HTTP handler that turns buffered events
// into Server-Sent Events frames.
//
// # Architecture
//
//   - Buffer: capacity-bounded ring of events, oldest evicted first
//   - Publisher: appends (kind, payload) pairs on behalf of CRUD handlers
//   - Hub: connection id -> cursor map, torn down with the application
//   - Stream: per-connection poll loop writing SSE frames and heartbeats
//   - Reader: client-side frame parser
//
// # Usage
//
//	buf := sse.NewBuffer(100)
//	hub := sse.NewHub()
//	pub := sse.NewPublisher(buf)
//	router.GET("/events", gin.WrapH(sse.NewStream(hub, buf, cfg)))
//	pub.Publish(ctx, sse.KindUserCreated, user)
package sse
