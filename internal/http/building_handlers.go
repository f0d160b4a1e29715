package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/nurpe/condo-ledger/internal/http/middleware"
	"github.com/nurpe/condo-ledger/internal/service"
)

type createBuildingRequest struct {
	Name                    string `json:"name" binding:"required"`
	Address                 string `json:"address"`
	City                    string `json:"city"`
	Country                 string `json:"country"`
	BookingRequiresApproval *bool  `json:"booking_requires_approval"`
}

func (h *Handler) createBuilding(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createBuildingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	building, err := h.registry.CreateBuilding(c.Request.Context(), principal, service.CreateBuildingInput{
		Name:             req.Name,
		Address:          req.Address,
		City:             req.City,
		Country:          req.Country,
		RequiresApproval: req.BookingRequiresApproval,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, building)
}

func (h *Handler) listBuildings(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	buildings, err := h.registry.ListBuildings(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": buildings})
}

func (h *Handler) getBuilding(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	building, err := h.registry.GetBuilding(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, building)
}

func (h *Handler) deleteBuilding(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	if err := h.registry.DeleteBuilding(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bookingPolicyRequest struct {
	RequiresApproval *bool `json:"requires_approval" binding:"required"`
}

func (h *Handler) setBookingPolicy(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req bookingPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	building, err := h.registry.SetBookingPolicy(c.Request.Context(), principal, id, *req.RequiresApproval)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, building)
}

func (h *Handler) buildingStats(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	stats, err := h.registry.BuildingStats(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type unitRequest struct {
	Number       string           `json:"number" binding:"required"`
	Floor        *int             `json:"floor"`
	Area         *decimal.Decimal `json:"area"`
	SharePercent decimal.Decimal  `json:"share_percent"`
}

func (r unitRequest) input() service.UnitInput {
	return service.UnitInput{
		Number:       r.Number,
		Floor:        r.Floor,
		Area:         r.Area,
		SharePercent: r.SharePercent,
	}
}

func (h *Handler) createUnit(c *gin.Context) {
	principal, buildingID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req unitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unit, err := h.registry.CreateUnit(c.Request.Context(), principal, buildingID, req.input())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

func (h *Handler) listUnits(c *gin.Context) {
	principal, buildingID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	units, err := h.registry.ListUnits(c.Request.Context(), principal, buildingID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": units})
}

func (h *Handler) getUnit(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	unit, err := h.registry.GetUnit(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (h *Handler) updateUnit(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req unitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unit, err := h.registry.UpdateUnit(c.Request.Context(), principal, id, req.input())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (h *Handler) deleteUnit(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	if err := h.registry.DeleteUnit(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listUnitDues(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	dues, err := h.billing.ListUnitDues(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dues})
}
