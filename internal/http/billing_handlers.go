package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/nurpe/condo-ledger/internal/model"
	"github.com/nurpe/condo-ledger/internal/service"
)

type createPeriodRequest struct {
	Month       int             `json:"month" binding:"required"`
	Year        int             `json:"year" binding:"required"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	DueDate     string          `json:"due_date" binding:"required"`
	Notes       *string         `json:"notes"`
}

func (h *Handler) createPeriod(c *gin.Context) {
	principal, buildingID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req createPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dueDate, err := parseTime(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date"})
		return
	}

	period, err := h.billing.CreatePeriod(c.Request.Context(), principal, service.CreatePeriodInput{
		BuildingID:  buildingID,
		Month:       req.Month,
		Year:        req.Year,
		TotalAmount: req.TotalAmount,
		DueDate:     dueDate,
		Notes:       req.Notes,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, period)
}

func (h *Handler) listPeriods(c *gin.Context) {
	principal, buildingID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	periods, err := h.billing.ListPeriods(c.Request.Context(), principal, buildingID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": periods})
}

func (h *Handler) getPeriod(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	period, err := h.billing.GetPeriod(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, period)
}

type updatePeriodRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

func (h *Handler) updatePeriod(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req updatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input := service.UpdatePeriodInput{Notes: req.Notes}
	if req.Status != nil {
		status := model.PeriodStatus(*req.Status)
		input.Status = &status
	}
	period, err := h.billing.UpdatePeriod(c.Request.Context(), principal, id, input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, period)
}

func (h *Handler) allocate(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	dues, err := h.billing.AllocateToAllUnits(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": dues})
}

func (h *Handler) periodStats(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	stats, err := h.billing.PeriodStats(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) listDues(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	dues, err := h.billing.ListDues(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dues})
}
