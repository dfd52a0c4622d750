package tenant

import (
	"net/http"
	"strconv"

	"github.com/jilaboon/rafit-sub000/internal/api"
	"github.com/jilaboon/rafit-sub000/internal/apperror"
	"github.com/jilaboon/rafit-sub000/internal/auth"
	"github.com/jilaboon/rafit-sub000/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo   Repository
	lookup *PolicyLookup
}

func NewHandler(repo Repository, lookup *PolicyLookup) *Handler {
	return &Handler{repo: repo, lookup: lookup}
}

// tenantParam parses :tenantID and rejects admins of other tenants.
func tenantParam(c *gin.Context) (int, bool) {
	tenantID, err := strconv.Atoi(c.Param("tenantID"))
	if err != nil || tenantID <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid tenant ID"})
		return 0, false
	}

	p, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return 0, false
	}
	if p.TenantID != 0 && p.TenantID != tenantID {
		api.RespondError(c, apperror.ErrForbidden.Withf("policy of tenant %d is not yours", tenantID))
		return 0, false
	}
	return tenantID, true
}

func (h *Handler) GetPolicy(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}

	policy, err := h.lookup.PolicyFor(c.Request.Context(), tenantID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenant_id":                 tenantID,
		"cancellation_policy_hours": int(policy.CancellationWindow.Hours()),
		"checkin_window_minutes":    int(policy.CheckinOpensBefore.Minutes()),
		"no_show_boundary":          policy.NoShowBoundary,
		"no_show_grace_minutes":     int(policy.NoShowGrace.Minutes()),
	})
}

func (h *Handler) UpdatePolicy(c *gin.Context) {
	tenantID, ok := tenantParam(c)
	if !ok {
		return
	}

	var req UpdatePolicyRequest
	if !api.BindJSON(c, &req) {
		return
	}

	policy, err := h.repo.Upsert(c.Request.Context(), tenantID, req)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	logger.Info("tenant policy updated", "tenant_id", tenantID, "cancellation_policy_hours", policy.CancellationPolicyHours)
	c.JSON(http.StatusOK, policy)
}
