// Package user holds the user records shown on the dashboard: the in-memory
// store, the service that mutates it and publishes change events, and the
// HTTP handlers.
package user

import (
	"time"
)

// User is one row of the dashboard table.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRequest is the body of POST /api/users. Username is optional and
// defaults to "user<id>".
type CreateRequest struct {
	Username string `json:"username" validate:"omitempty,min=3,max=32,alphanum"`
}

// DeletedEvent is the payload published when a user is removed.
type DeletedEvent struct {
	ID int64 `json:"id"`
}

// DeleteResponse is returned by the delete endpoints.
type DeleteResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}
