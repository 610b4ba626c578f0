package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/core"
	"github.com/synera-br/splennet-backend/internal/middleware"
)

// maxWebhookBodyBytes bounds the Stripe webhook payload.
const maxWebhookBodyBytes = 65536

// BillingHandler handles billing-related API endpoints.
type BillingHandler struct {
	billing core.BillingService
	catalog *core.PlanCatalog
	errors  errorMapper
	logger  *zap.Logger
}

// newBillingHandler creates a new BillingHandler.
func newBillingHandler(billing core.BillingService, catalog *core.PlanCatalog, errors errorMapper, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, catalog: catalog, errors: errors, logger: logger}
}

// Plans handles GET /plans.
func (h *BillingHandler) Plans(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.All())
}

// CreateCheckoutSession handles POST /billing/create-checkout-session.
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	var req CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	url, err := h.billing.CreateCheckoutSession(c.Request.Context(), c.GetString(middleware.UserIDKey), req.Plan)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, URLResponse{URL: url})
}

// CreatePortalSession handles POST /billing/create-portal-session.
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	url, err := h.billing.CreatePortalSession(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, URLResponse{URL: url})
}

// HandleStripeWebhook handles POST /billing/webhooks/stripe. The endpoint is public;
// Stripe authenticates itself with the Stripe-Signature header.
func (h *BillingHandler) HandleStripeWebhook(c *gin.Context) {
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing Stripe-Signature header"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		h.logger.Warn("Error reading Stripe webhook body", zap.Error(err))
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Failed to read webhook payload", Details: err.Error()})
		return
	}

	if err := h.billing.HandleStripeWebhook(c.Request.Context(), signature, payload); err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Webhook received successfully"})
}
