package ledger

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/jilaboon/rafit-sub000/internal/api"
	"github.com/jilaboon/rafit-sub000/internal/apperror"
	"github.com/jilaboon/rafit-sub000/internal/auth"
	"github.com/jilaboon/rafit-sub000/internal/membership"

	"github.com/gin-gonic/gin"
)

type MembershipReader interface {
	GetByID(ctx context.Context, id int) (*membership.Membership, error)
}

type Handler struct {
	ledger      *Ledger
	memberships MembershipReader
}

func NewHandler(ledger *Ledger, memberships MembershipReader) *Handler {
	return &Handler{ledger: ledger, memberships: memberships}
}

// ListEntries returns the balance journal of one membership, newest first.
// Members only see their own memberships; studio-scoped callers only see
// memberships sold by their studio.
func (h *Handler) ListEntries(c *gin.Context) {
	principal, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	membershipID, err := strconv.Atoi(c.Param("membershipID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid membership ID"})
		return
	}

	ctx := c.Request.Context()
	m, err := h.memberships.GetByID(ctx, membershipID)
	if err == nil && principal.TenantID != 0 && m.TenantID != principal.TenantID {
		err = membership.ErrNotFound
	}
	if errors.Is(err, membership.ErrNotFound) {
		api.RespondError(c, apperror.ErrNotFound.Withf("membership %d not found", membershipID))
		return
	}
	if err != nil {
		api.RespondError(c, err)
		return
	}
	if !principal.Allowed(auth.PermBookingRead, m.CustomerID) {
		api.RespondError(c, apperror.ErrForbidden)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.ledger.Entries(ctx, membershipID, limit, offset)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}
