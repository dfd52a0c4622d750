package api

import (
	"net/http"

	"github.com/jilaboon/rafit-sub000/internal/apperror"
	"github.com/jilaboon/rafit-sub000/internal/logger"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// RespondError writes a typed failure with its status and code. Anything that
// is not an *apperror.Error is logged and reported as an internal error.
func RespondError(c *gin.Context, err error) {
	if appErr, ok := apperror.As(err); ok {
		c.JSON(appErr.Status, ErrorResponse{Error: appErr.Message, Code: string(appErr.Code)})
		return
	}

	logger.Error("unhandled error", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
