package handler

import (
	"ticket-wallet-service/internal/adapter/http/dto"
	"ticket-wallet-service/internal/core/domain"
	"ticket-wallet-service/internal/core/ports"
	"ticket-wallet-service/pkg/apperror"
	"ticket-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles booking charge and refund endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Charge handles POST /api/v1/payments.
func (h *PaymentHandler) Charge(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.paymentSvc.ChargePayment(c.Request.Context(), ports.ChargeRequest{
		UserID:      userID,
		BookingRef:  req.BookingRef,
		Amount:      domain.Money(req.Amount),
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromEntry(result))
}

// Refund handles POST /api/v1/payments/refund.
func (h *PaymentHandler) Refund(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	var amount *domain.Money
	if req.Amount != nil {
		m := domain.Money(*req.Amount)
		amount = &m
	}

	result, err := h.paymentSvc.RefundPayment(c.Request.Context(), ports.RefundRequest{
		UserID:     userID,
		BookingRef: req.BookingRef,
		Amount:     amount,
		Reason:     req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromEntry(result))
}
