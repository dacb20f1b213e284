package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the session token claims.
type Claims struct {
	gojwt.RegisteredClaims
	Role string `json:"role"`
}

// RoleAdmin is the only role the gate issues.
const RoleAdmin = "admin"

// Sessions issues and parses HS256 session tokens.
type Sessions struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewSessions creates a token service signing with secret.
func NewSessions(secret string, ttl time.Duration, issuer string) *Sessions {
	return &Sessions{key: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}
}

// Issue signs a new token for subject.
func (s *Sessions) Issue(subject, role string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(expires),
		},
		Role: role,
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies the signature, issuer and expiry of token.
func (s *Sessions) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, s.keyFunc,
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(s.issuer),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("auth: invalid token")
	}
	return claims, nil
}

func (s *Sessions) keyFunc(token *gojwt.Token) (any, error) {
	if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("auth: unexpected signing method: %s", token.Method.Alg())
	}
	return s.key, nil
}

type claimsKey struct{}

// WithClaims stores session claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the session claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
