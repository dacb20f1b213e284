package user

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/qprofile/errors"
	"github.com/kbukum/qprofile/server"
	"github.com/kbukum/qprofile/validation"
)

// Handler exposes the user service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates the user HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the user routes on r, which is expected to be the /api/users
// group.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("", h.List)
	r.POST("", h.Create)
	r.DELETE("", h.DeleteLatest)
	r.GET("/:id", h.Get)
	r.DELETE("/:id", h.Delete)
}

// List handles GET /api/users.
func (h *Handler) List(c *gin.Context) {
	users, err := h.svc.List(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, users)
}

// Get handles GET /api/users/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := validation.ParseID("id", c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	u, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, u)
}

// Create handles POST /api/users. An empty body creates a user with the
// default name.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			server.RespondWithError(c, apperrors.InvalidInput("body", "request body too large"))
			return
		}
		server.RespondWithError(c, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	u, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, u)
}

// Delete handles DELETE /api/users/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := validation.ParseID("id", c.Param("id"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, DeleteResponse{Message: "User deleted", ID: id})
}

// DeleteLatest handles DELETE /api/users.
func (h *Handler) DeleteLatest(c *gin.Context) {
	u, err := h.svc.DeleteLatest(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, DeleteResponse{Message: "User deleted", ID: u.ID})
}
