package handler

import (
	"io"

	"ticket-wallet-service/internal/adapter/http/dto"
	"ticket-wallet-service/internal/adapter/http/middleware"
	"ticket-wallet-service/internal/core/ports"
	"ticket-wallet-service/pkg/apperror"
	"ticket-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives payment-gateway callbacks.
type WebhookHandler struct {
	webhookSvc ports.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(webhookSvc ports.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// Handle handles POST /api/v1/payment/webhook. The signature is read
// from the gateway header and verified over the raw body; replays of an
// already-resolved event are acknowledged as success.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	signature := c.GetHeader(middleware.HeaderGatewaySignature)

	entry, err := h.webhookSvc.HandleGatewayEvent(c.Request.Context(), body, signature)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.FromEntry(entry))
}
