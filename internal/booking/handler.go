package booking

import (
	"net/http"
	"strconv"
	"strings"

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

func principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := auth.GetPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
	}
	return p, ok
}

func idParam(c *gin.Context, name, label string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid " + label + " ID", Code: string(apperror.CodeInvalidInput)})
		return 0, false
	}
	return id, true
}

// parseStatuses reads a comma separated ?status= list.
func parseStatuses(raw string) ([]Status, error) {
	if raw == "" {
		return nil, nil
	}
	var out []Status
	for _, part := range strings.Split(raw, ",") {
		st, err := ParseStatus(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: name + " must be a non-negative integer", Code: string(apperror.CodeInvalidInput)})
		return 0, false
	}
	return v, true
}

func (h *Handler) CreateBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	classID, ok := idParam(c, "classID", "class")
	if !ok {
		return
	}

	var req CreateBookingRequest
	if c.Request.ContentLength != 0 && !api.BindJSON(c, &req) {
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), p, classID, req)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	bookingID, ok := idParam(c, "bookingID", "booking")
	if !ok {
		return
	}

	b, err := h.service.GetBooking(c.Request.Context(), p, bookingID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

// ListBookings lists a customer's bookings. Members see their own; staff may pass ?customer_id.
func (h *Handler) ListBookings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		api.RespondError(c, err)
		return
	}

	var filter ListFilter
	filter.Statuses = statuses
	for name, dst := range map[string]*int{
		"customer_id": &filter.CustomerID,
		"limit":       &filter.Limit,
		"offset":      &filter.Offset,
	} {
		v, ok := queryInt(c, name)
		if !ok {
			return
		}
		*dst = v
	}

	bookings, err := h.service.ListCustomerBookings(c.Request.Context(), p, filter)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	bookingID, ok := idParam(c, "bookingID", "booking")
	if !ok {
		return
	}

	var req CancelBookingRequest
	if c.Request.ContentLength != 0 && !api.BindJSON(c, &req) {
		return
	}

	b, err := h.service.CancelBooking(c.Request.Context(), p, bookingID, req.Reason)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

func (h *Handler) CheckIn(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	bookingID, ok := idParam(c, "bookingID", "booking")
	if !ok {
		return
	}

	b, err := h.service.CheckIn(c.Request.Context(), p, bookingID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

func (h *Handler) MarkNoShow(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	bookingID, ok := idParam(c, "bookingID", "booking")
	if !ok {
		return
	}

	b, err := h.service.MarkNoShow(c.Request.Context(), p, bookingID)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

func (h *Handler) ListClassBookings(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	classID, ok := idParam(c, "classID", "class")
	if !ok {
		return
	}

	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		api.RespondError(c, err)
		return
	}

	bookings, err := h.service.ListClassBookings(c.Request.Context(), p, classID, statuses)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// CancelClass cancels a class instance and every active booking on it, restoring balances.
func (h *Handler) CancelClass(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	classID, ok := idParam(c, "classID", "class")
	if !ok {
		return
	}

	var req CancelClassRequest
	if !api.BindJSON(c, &req) {
		return
	}

	result, err := h.service.CancelClassInstance(c.Request.Context(), p, classID, req.Reason)
	if err != nil {
		api.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
