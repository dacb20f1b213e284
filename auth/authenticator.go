package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/qprofile/errors"
	"github.com/kbukum/qprofile/logger"
)

// AdminSubject is the subject of every issued session.
const AdminSubject = "admin"

// Authenticator checks the admin password and manages session tokens.
type Authenticator struct {
	cfg      Config
	hasher   Hasher
	hash     string
	sessions *Sessions
	log      *logger.Logger
}

// New hashes the configured admin password and prepares the token service.
func New(cfg Config) (*Authenticator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	hasher := NewBcryptHasher(cfg.BcryptCost)
	hash, err := hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return nil, err
	}
	a := &Authenticator{
		cfg:      cfg,
		hasher:   hasher,
		hash:     hash,
		sessions: NewSessions(cfg.SecretKey, cfg.SessionTTL, cfg.Issuer),
		log:      logger.WithComponent("auth"),
	}
	if cfg.UsesDevelopmentDefaults() {
		a.log.Warn("[AUTH] Using development credentials; set ADMIN_PASSWORD and SECRET_KEY")
	}
	return a, nil
}

// Enabled reports whether requests must carry a session.
func (a *Authenticator) Enabled() bool { return a.cfg.IsEnabled() }

// CookieName returns the session cookie name.
func (a *Authenticator) CookieName() string { return a.cfg.CookieName }

// CheckPassword reports whether password matches the admin password.
func (a *Authenticator) CheckPassword(password string) bool {
	return a.hasher.Verify(password, a.hash) == nil
}

// Login verifies password and issues a session token.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if !a.CheckPassword(password) {
		a.log.Warn("[AUTH] Rejected login attempt")
		return "", time.Time{}, apperrors.Unauthorized("invalid password")
	}
	token, expires, err := a.sessions.Issue(AdminSubject, RoleAdmin)
	if err != nil {
		return "", time.Time{}, apperrors.Internal(err)
	}
	a.log.Info("[AUTH] Admin session issued", map[string]interface{}{
		"expires_at": expires.Format(time.RFC3339),
	})
	return token, expires, nil
}

// Verify parses a session token, mapping failures to application errors.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, apperrors.Unauthorized("session required")
	}
	claims, err := a.sessions.Parse(token)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired().WithCause(err)
		}
		return nil, apperrors.InvalidToken().WithCause(err)
	}
	return claims, nil
}

// SessionCookie builds the cookie carrying token.
func (a *Authenticator) SessionCookie(token string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie builds a cookie that removes the session.
func (a *Authenticator) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// TokenFromRequest returns the session token from the cookie or a Bearer
// Authorization header.
func (a *Authenticator) TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(a.cfg.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
