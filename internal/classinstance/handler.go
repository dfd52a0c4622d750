package classinstance

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/api"
	"github.com/jilaboon/rafit-sub000/internal/apperror"
	"github.com/jilaboon/rafit-sub000/internal/auth"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

// CreateClass schedules a class instance. Admins may only schedule for their own tenant.
func (h *Handler) CreateClass(c *gin.Context) {
	var req CreateClassRequest
	if !api.BindJSON(c, &req) {
		return
	}

	if p, ok := auth.GetPrincipal(c); ok && p.TenantID != 0 && p.TenantID != req.TenantID {
		api.RespondError(c, apperror.ErrForbidden.Withf("cannot schedule classes for tenant %d", req.TenantID))
		return
	}

	class, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, class)
}

// GetClass returns a class with its live seat and waitlist counts.
func (h *Handler) GetClass(c *gin.Context) {
	classID, err := strconv.Atoi(c.Param("classID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid class ID"})
		return
	}

	class, err := h.service.GetWithAvailability(c.Request.Context(), classID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, class)
}

// ListClasses lists the caller's tenant classes starting at or after ?from (RFC3339, default now).
func (h *Handler) ListClasses(c *gin.Context) {
	p, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	from := time.Now()
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "from must be RFC3339", Code: string(apperror.CodeInvalidInput)})
			return
		}
		from = parsed
	}

	classes, err := h.service.ListUpcoming(c.Request.Context(), p.TenantID, from)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, classes)
}
