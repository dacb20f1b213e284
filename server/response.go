package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/qprofile/errors"
	"github.com/kbukum/qprofile/logger"
)

// RespondWithError writes the structured error body for err. Non-AppErrors
// become a generic 500 and are logged.
func RespondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	logger.WithContext(c.Request.Context()).Error("Unhandled error", map[string]interface{}{
		"error":  err.Error(),
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	})
	c.JSON(http.StatusInternalServerError, apperrors.Internal(err).ToResponse())
}

// AbortWithError is RespondWithError for middleware: it also stops the chain.
func AbortWithError(c *gin.Context, err error) {
	RespondWithError(c, err)
	c.Abort()
}

// RespondOK sends a 200 JSON response.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// RespondCreated sends a 201 JSON response.
func RespondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// RespondNoContent sends a 204 with no body.
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
