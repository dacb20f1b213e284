package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/qprofile/auth"
	apperrors "github.com/kbukum/qprofile/errors"
)

// SessionVerifier validates session tokens.
type SessionVerifier interface {
	Enabled() bool
	TokenFromRequest(r *http.Request) string
	Verify(token string) (*auth.Claims, error)
}

// SessionConfig configures the session gate.
type SessionConfig struct {
	// LoginPath is where browser page requests are redirected.
	LoginPath string
	// SkipPaths bypass the gate.
	SkipPaths []string
}

// Session guards routes behind a valid session. Page requests are redirected
// to the login page; API and event-stream requests get a 401 error body.
func Session(v SessionVerifier, cfg SessionConfig) gin.HandlerFunc {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	return func(c *gin.Context) {
		if !v.Enabled() {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip {
				c.Next()
				return
			}
		}

		claims, err := v.Verify(v.TokenFromRequest(c.Request))
		if err != nil {
			if wantsPage(c.Request) {
				c.Redirect(http.StatusSeeOther, cfg.LoginPath)
				c.Abort()
				return
			}
			appErr := apperrors.Wrap(err)
			c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// wantsPage reports whether r is a browser navigation rather than an API or
// EventSource call.
func wantsPage(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "text/event-stream") {
		return false
	}
	return strings.Contains(accept, "text/html")
}
