package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/nurpe/condo-ledger/internal/http/middleware"
	"github.com/nurpe/condo-ledger/internal/model"
	"github.com/nurpe/condo-ledger/internal/service"
)

type submitPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	ProofURI  string          `json:"proof_uri" binding:"required"`
	Reference *string         `json:"reference"`
	Notes     *string         `json:"notes"`
	PaidAt    string          `json:"paid_at"`
}

func (h *Handler) submitPayment(c *gin.Context) {
	principal, dueID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req submitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	paidAt, err := parseOptionalTime(req.PaidAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paid_at"})
		return
	}

	payment, err := h.payments.SubmitPayment(c.Request.Context(), principal, service.SubmitPaymentInput{
		DueID:     dueID,
		Amount:    req.Amount,
		Method:    model.PaymentMethod(req.Method),
		ProofURI:  req.ProofURI,
		Reference: req.Reference,
		Notes:     req.Notes,
		PaidAt:    paidAt,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

type manualPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference *string         `json:"reference"`
	Notes     *string         `json:"notes"`
	PaidAt    string          `json:"paid_at"`
}

func (h *Handler) recordManualPayment(c *gin.Context) {
	principal, dueID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req manualPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	paidAt, err := parseOptionalTime(req.PaidAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paid_at"})
		return
	}

	payment, err := h.payments.RecordManualPayment(c.Request.Context(), principal, service.ManualPaymentInput{
		DueID:     dueID,
		Amount:    req.Amount,
		Method:    model.PaymentMethod(req.Method),
		Reference: req.Reference,
		Notes:     req.Notes,
		PaidAt:    paidAt,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *Handler) listPayments(c *gin.Context) {
	principal, dueID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	payments, err := h.payments.ListPayments(c.Request.Context(), principal, dueID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (h *Handler) getPayment(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	payment, err := h.payments.GetPayment(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) confirmPayment(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	due, err := h.payments.ConfirmPayment(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, due)
}

type rejectPaymentRequest struct {
	Reason *string `json:"reason"`
}

func (h *Handler) rejectPayment(c *gin.Context) {
	principal, id, ok := h.principalAndID(c)
	if !ok {
		return
	}
	var req rejectPaymentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	payment, err := h.payments.RejectPayment(c.Request.Context(), principal, id, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) listPendingPayments(c *gin.Context) {
	principal, buildingID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	payments, err := h.payments.ListPendingPayments(c.Request.Context(), principal, buildingID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payments})
}

type markOverdueRequest struct {
	AsOf string `json:"as_of"`
}

// markOverdue lets an external scheduler run the sweep. It spans every
// building, so only platform admins may call it.
func (h *Handler) markOverdue(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	if !principal.IsPlatformAdmin() {
		h.handleError(c, service.ErrPermissionDenied)
		return
	}

	var req markOverdueRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	asOf := time.Now().UTC()
	if req.AsOf != "" {
		parsed, err := parseTime(req.AsOf)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid as_of"})
			return
		}
		asOf = parsed
	}

	count, err := h.payments.MarkOverdue(c.Request.Context(), asOf)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": count})
}
