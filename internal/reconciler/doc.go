// Package reconciler keeps a local copy of the user table in sync with a
// q-profile-vending server.
//
// The live path is the /events stream: user_created and user_deleted frames
// are applied idempotently. When the stream fails the reconciler falls back
// to polling the full list, which replaces the table with server truth, and
// periodically tries the stream again.
//
//	SSE_CONNECTED -> DISCONNECTED -> POLLING -> (refocus or reconnect timer) -> SSE_CONNECTED
package reconciler
