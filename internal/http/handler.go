package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/condo-ledger/internal/http/middleware"
	"github.com/nurpe/condo-ledger/internal/model"
	"github.com/nurpe/condo-ledger/internal/service"
)

type Services struct {
	Registry *service.RegistryService
	Billing  *service.BillingService
	Payments *service.PaymentService
	Bookings *service.BookingService
}

type Handler struct {
	registry *service.RegistryService
	billing  *service.BillingService
	payments *service.PaymentService
	bookings *service.BookingService
	log      zerolog.Logger
}

func NewHandler(services Services, log zerolog.Logger) *Handler {
	return &Handler{
		registry: services.Registry,
		billing:  services.Billing,
		payments: services.Payments,
		bookings: services.Bookings,
		log:      log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/buildings", h.createBuilding)
	protected.GET("/buildings", h.listBuildings)
	protected.GET("/buildings/:id", h.getBuilding)
	protected.DELETE("/buildings/:id", h.deleteBuilding)
	protected.PATCH("/buildings/:id/booking-policy", h.setBookingPolicy)
	protected.GET("/buildings/:id/stats", h.buildingStats)
	protected.POST("/buildings/:id/units", h.createUnit)
	protected.GET("/buildings/:id/units", h.listUnits)
	protected.GET("/units/:id", h.getUnit)
	protected.PUT("/units/:id", h.updateUnit)
	protected.DELETE("/units/:id", h.deleteUnit)
	protected.GET("/units/:id/dues", h.listUnitDues)

	protected.POST("/buildings/:id/periods", h.createPeriod)
	protected.GET("/buildings/:id/periods", h.listPeriods)
	protected.GET("/periods/:id", h.getPeriod)
	protected.PATCH("/periods/:id", h.updatePeriod)
	protected.POST("/periods/:id/allocate", h.allocate)
	protected.GET("/periods/:id/stats", h.periodStats)
	protected.GET("/periods/:id/dues", h.listDues)

	protected.POST("/dues/:id/payments", h.submitPayment)
	protected.GET("/dues/:id/payments", h.listPayments)
	protected.POST("/dues/:id/manual-payments", h.recordManualPayment)
	protected.GET("/payments/:id", h.getPayment)
	protected.POST("/payments/:id/confirm", h.confirmPayment)
	protected.POST("/payments/:id/reject", h.rejectPayment)
	protected.GET("/buildings/:id/payments/pending", h.listPendingPayments)
	protected.POST("/sweeps/overdue", h.markOverdue)

	protected.POST("/buildings/:id/spaces", h.createSpace)
	protected.GET("/buildings/:id/spaces", h.listSpaces)
	protected.PATCH("/spaces/:id", h.setSpaceActive)
	protected.DELETE("/spaces/:id", h.deleteSpace)
	protected.GET("/spaces/:id/availability", h.checkAvailability)
	protected.POST("/buildings/:id/bookings", h.createBooking)
	protected.GET("/buildings/:id/bookings", h.listBookings)
	protected.GET("/bookings/:id", h.getBooking)
	protected.PATCH("/bookings/:id/status", h.updateBookingStatus)
	protected.POST("/bookings/:id/cancel", h.cancelBooking)
}

// principalAndID reads the acting principal and the :id path parameter,
// writing the error response itself when either is missing.
func (h *Handler) principalAndID(c *gin.Context) (model.Principal, uuid.UUID, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return model.Principal{}, uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return model.Principal{}, uuid.Nil, false
	}
	return principal, id, true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var conflict *service.SlotConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "conflicts": conflict.Conflicts})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadyAllocated),
		errors.Is(err, service.ErrUnitAlreadyPaid),
		errors.Is(err, service.ErrPendingPaymentExists),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInUse),
		errors.Is(err, service.ErrPeriodExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

// parseOptionalTime returns nil for an empty value.
func parseOptionalTime(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
