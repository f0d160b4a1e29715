package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nurpe/condo-ledger/internal/model"
	"github.com/nurpe/condo-ledger/internal/service"
)

type createSpaceRequest struct {
	Name             string  `json:"name" binding:"required"`
	Description      *string `json:"description"`
	Capacity         *int    `json:"capacity"`
	RequiresApproval bool    `json:"requires_approval"`
}

func (h *Handler) createSpace(c *gin.Context) {
	principal, buildingID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req createSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	space, err := h.bookings.CreateSpace(c.Request.Context(), principal, buildingID, service.CreateSpaceInput{
		Name:             req.Name,
		Description:      req.Description,
		Capacity:         req.Capacity,
		RequiresApproval: req.RequiresApproval,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, space)
}

func (h *Handler) listSpaces(c *gin.Context) {
	principal, buildingID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	spaces, err := h.bookings.ListSpaces(c.Request.Context(), principal, buildingID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": spaces})
}

type updateSpaceRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *Handler) setSpaceActive(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req updateSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	space, err := h.bookings.SetSpaceActive(c.Request.Context(), principal, id, *req.Active)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, space)
}

func (h *Handler) deleteSpace(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	if err := h.bookings.DeleteSpace(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) checkAvailability(c *gin.Context) {
	principal, spaceID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	start, err := parseTime(c.Query("start_at"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_at"})
		return
	}
	end, err := parseTime(c.Query("end_at"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_at"})
		return
	}
	var exclude *uuid.UUID
	if raw := strings.TrimSpace(c.Query("exclude_booking_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exclude_booking_id"})
			return
		}
		exclude = &id
	}

	availability, err := h.bookings.CheckAvailability(c.Request.Context(), principal, spaceID, start, end, exclude)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, availability)
}

type createBookingRequest struct {
	SpaceID     string  `json:"space_id" binding:"required"`
	UnitID      string  `json:"unit_id" binding:"required"`
	StartAt     string  `json:"start_at" binding:"required"`
	EndAt       string  `json:"end_at" binding:"required"`
	Notes       *string `json:"notes"`
	AsConfirmed bool    `json:"as_confirmed"`
}

func (h *Handler) createBooking(c *gin.Context) {
	principal, buildingID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	spaceID, err := uuid.Parse(strings.TrimSpace(req.SpaceID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid space_id"})
		return
	}
	unitID, err := uuid.Parse(strings.TrimSpace(req.UnitID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit_id"})
		return
	}
	start, err := parseTime(req.StartAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_at"})
		return
	}
	end, err := parseTime(req.EndAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_at"})
		return
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), principal, service.CreateBookingInput{
		BuildingID:  buildingID,
		SpaceID:     spaceID,
		UnitID:      unitID,
		StartAt:     start,
		EndAt:       end,
		Notes:       req.Notes,
		AsConfirmed: req.AsConfirmed,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

func (h *Handler) listBookings(c *gin.Context) {
	principal, buildingID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	from, err := parseOptionalTime(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	to, err := parseOptionalTime(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	}
	bookings, err := h.bookings.ListBookings(c.Request.Context(), principal, buildingID, from, to)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bookings})
}

func (h *Handler) getBooking(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	booking, err := h.bookings.GetBooking(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

type bookingStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateBookingStatus(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req bookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status := model.BookingStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	booking, err := h.bookings.UpdateBookingStatus(c.Request.Context(), principal, id, status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func (h *Handler) cancelBooking(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	booking, err := h.bookings.CancelBooking(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
