// Package dashboard serves the browser pages: the live user table and the
// login form that guards it.
package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/kbukum/qprofile/auth"
	"github.com/kbukum/qprofile/logger"
	"github.com/kbukum/qprofile/server"
)

//go:embed static
var staticFS embed.FS

const (
	loginPath    = "/login"
	homePath     = "/"
	msgLoggedOut = "logged_out"
)

// Authenticator is the part of *auth.Authenticator the pages need.
type Authenticator interface {
	Enabled() bool
	Login(password string) (string, time.Time, error)
	Verify(token string) (*auth.Claims, error)
	TokenFromRequest(r *http.Request) string
	SessionCookie(token string, expires time.Time, secure bool) *http.Cookie
	ClearCookie() *http.Cookie
}

// Handler serves the dashboard and the login flow.
type Handler struct {
	auth          Authenticator
	page          []byte
	login         *template.Template
	secureCookies bool
	log           *logger.Logger
}

type loginView struct {
	Error string
	Info  string
}

type loginRequest struct {
	Password string `json:"password" form:"password"`
}

// New loads the embedded pages.
func New(a Authenticator, secureCookies bool) (*Handler, error) {
	page, err := staticFS.ReadFile("static/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("dashboard: read page: %w", err)
	}
	login, err := template.ParseFS(staticFS, "static/login.html")
	if err != nil {
		return nil, fmt.Errorf("dashboard: parse login page: %w", err)
	}
	return &Handler{
		auth:          a,
		page:          page,
		login:         login,
		secureCookies: secureCookies,
		log:           logger.WithComponent("dashboard"),
	}, nil
}

// Register mounts the pages. guard protects the dashboard; loginLimit
// throttles POST /login. Either may be nil.
func (h *Handler) Register(r gin.IRoutes, guard, loginLimit gin.HandlerFunc) {
	r.GET(homePath, handlers(guard, h.Dashboard)...)
	r.GET(loginPath, h.LoginPage)
	r.POST(loginPath, handlers(loginLimit, h.Login)...)
	r.GET("/logout", h.Logout)
}

func handlers(mw gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if mw == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{mw, h}
}

// Dashboard serves the live user table.
func (h *Handler) Dashboard(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", h.page)
}

// LoginPage shows the login form, or sends a signed-in browser home.
func (h *Handler) LoginPage(c *gin.Context) {
	if h.signedIn(c.Request) {
		c.Redirect(http.StatusSeeOther, homePath)
		return
	}
	var view loginView
	if c.Query("msg") == msgLoggedOut {
		view.Info = "You have been logged out."
	}
	h.renderLogin(c, http.StatusOK, view)
}

// Login checks the submitted password and sets the session cookie. Form posts
// are redirected; JSON clients get a JSON body.
func (h *Handler) Login(c *gin.Context) {
	jsonClient := wantsJSON(c.Request)

	if !h.auth.Enabled() {
		h.loggedIn(c, jsonClient, time.Time{})
		return
	}

	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.log.WithContext(c.Request.Context()).Debug("Unreadable login request", map[string]interface{}{
			"error": err.Error(),
		})
	}

	token, expires, err := h.auth.Login(req.Password)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Warn("Login failed", map[string]interface{}{
			"client_ip": c.ClientIP(),
		})
		if jsonClient {
			server.RespondWithError(c, err)
			return
		}
		h.renderLogin(c, http.StatusUnauthorized, loginView{Error: "Invalid password!"})
		return
	}

	http.SetCookie(c.Writer, h.auth.SessionCookie(token, expires, h.secureCookies))
	h.log.WithContext(c.Request.Context()).Info("Login successful", map[string]interface{}{
		"client_ip":  c.ClientIP(),
		"expires_at": expires.Format(time.RFC3339),
	})
	h.loggedIn(c, jsonClient, expires)
}

// Logout clears the session cookie.
func (h *Handler) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, h.auth.ClearCookie())
	c.Redirect(http.StatusSeeOther, loginPath+"?msg="+msgLoggedOut)
}

func (h *Handler) loggedIn(c *gin.Context, jsonClient bool, expires time.Time) {
	if !jsonClient {
		c.Redirect(http.StatusSeeOther, homePath)
		return
	}
	body := gin.H{"status": "ok"}
	if !expires.IsZero() {
		body["expires_at"] = expires.UTC().Format(time.RFC3339)
	}
	server.RespondOK(c, body)
}

func (h *Handler) signedIn(r *http.Request) bool {
	if !h.auth.Enabled() {
		return true
	}
	_, err := h.auth.Verify(h.auth.TokenFromRequest(r))
	return err == nil
}

func (h *Handler) renderLogin(c *gin.Context, status int, view loginView) {
	c.Render(status, render.HTML{Template: h.login, Name: "login.html", Data: view})
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}
