package reminder

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/invopay/reminder-api/internal/handler"
	"github.com/invopay/reminder-api/internal/model"
	apperrors "github.com/invopay/reminder-api/pkg/errors"
)

// Service is the slice of the reminder engine the HTTP layer needs.
type Service interface {
	PlanAndEnable(ctx context.Context, invoiceID uuid.UUID) ([]*model.Reminder, error)
	Cancel(ctx context.Context, reminderID uuid.UUID) error
	SendNow(ctx context.Context, reminderID uuid.UUID) error
	List(ctx context.Context, invoiceID uuid.UUID) ([]*model.Reminder, error)
}

// Lifecycle is the synchronous paid hook for UI-driven payment updates.
type Lifecycle interface {
	OnPaid(ctx context.Context, invoiceID uuid.UUID) error
}

type Handler struct {
	service   Service
	lifecycle Lifecycle
}

func NewHandler(service Service, lifecycle Lifecycle) *Handler {
	return &Handler{service: service, lifecycle: lifecycle}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	invoices := r.Group("/invoices")
	{
		invoices.POST("/:id/reminders", h.PlanReminders)
		invoices.GET("/:id/reminders", h.ListReminders)
		invoices.POST("/:id/paid", h.InvoicePaid)
	}

	reminders := r.Group("/reminders")
	{
		reminders.POST("/:id/send", h.SendNow)
		reminders.POST("/:id/cancel", h.Cancel)
	}
}

func (h *Handler) PlanReminders(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid invoice ID"))
		return
	}

	reminders, err := h.service.PlanAndEnable(c.Request.Context(), invoiceID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrNotEligible) {
			c.JSON(http.StatusUnprocessableEntity, handler.NewErrorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(reminders))
}

func (h *Handler) ListReminders(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid invoice ID"))
		return
	}

	reminders, err := h.service.List(c.Request.Context(), invoiceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(reminders))
}

func (h *Handler) SendNow(c *gin.Context) {
	reminderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid reminder ID"))
		return
	}

	err = h.service.SendNow(c.Request.Context(), reminderID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
	case apperrors.HasCode(err, apperrors.ErrAlreadyClaimed):
		// Soft no-op: another attempt owns the reminder, nothing was lost.
		c.JSON(http.StatusOK, handler.NewNoopResponse(err.Error()))
	case apperrors.HasCode(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, handler.NewErrorResponse(err.Error()))
	case apperrors.HasCode(err, apperrors.ErrSendFailed):
		c.JSON(http.StatusBadGateway, handler.NewErrorResponse(err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
	}
}

func (h *Handler) Cancel(c *gin.Context) {
	reminderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid reminder ID"))
		return
	}

	err = h.service.Cancel(c.Request.Context(), reminderID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
	case apperrors.HasCode(err, apperrors.ErrAlreadyTerminal),
		apperrors.HasCode(err, apperrors.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, handler.NewErrorResponse(err.Error()))
	case apperrors.HasCode(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, handler.NewErrorResponse(err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
	}
}

func (h *Handler) InvoicePaid(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid invoice ID"))
		return
	}

	if err := h.lifecycle.OnPaid(c.Request.Context(), invoiceID); err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
