// Package auth implements the single-admin session gate in front of the
// dashboard.
//
// The admin password is bcrypt-hashed once at construction and checked on
// login. A successful login yields an HS256 session token carried in a
// cookie; every guarded request parses and verifies that token.
//
//	a, err := auth.New(cfg)
//	token, expires, err := a.Login(password)
//	claims, err := a.Verify(token)
package auth
