package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/core"
)

// errorMapper turns service errors into HTTP responses.
type errorMapper struct {
	catalog *core.PlanCatalog
	logger  *zap.Logger
}

func (m errorMapper) respond(c *gin.Context, err error) {
	var limitErr *core.LimitReachedError
	if errors.As(err, &limitErr) {
		c.JSON(http.StatusPaymentRequired, LimitReachedResponse{
			Error:   "Usage limit reached",
			Usage:   limitErr.Decision,
			Upgrade: core.BuildUpgradePrompt(m.catalog, limitErr.Tier, limitErr.Action, limitErr.Decision.Remaining),
		})
		return
	}

	var rateErr *core.RateLimitedError
	if errors.As(err, &rateErr) {
		seconds := int(math.Ceil(rateErr.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "Too many requests", Details: err.Error()})
		return
	}

	var status int
	var resp ErrorResponse
	switch {
	case errors.Is(err, core.ErrAuthRequired):
		status, resp = http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"}
	case errors.Is(err, core.ErrValidationFailed):
		status, resp = http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Details: err.Error()}
	case errors.Is(err, core.ErrGenerationFailed):
		m.logger.Error("Essay generation failed", zap.Error(err))
		status, resp = http.StatusBadGateway, ErrorResponse{Error: "Essay generation failed", Details: "The text generation provider could not produce an essay. Please try again."}
	case errors.Is(err, core.ErrEntitlementUnavailable):
		m.logger.Error("Entitlement unavailable", zap.Error(err))
		status, resp = http.StatusServiceUnavailable, ErrorResponse{Error: "Usage information is temporarily unavailable", Details: "Please try again shortly."}
	case errors.Is(err, core.ErrUserNotFound), errors.Is(err, core.ErrEssayNotFound),
		errors.Is(err, core.ErrReviewNotFound), errors.Is(err, core.ErrPlanNotFound):
		status, resp = http.StatusNotFound, ErrorResponse{Error: "Not found", Details: err.Error()}
	case errors.Is(err, core.ErrForbidden):
		status, resp = http.StatusForbidden, ErrorResponse{Error: "Forbidden", Details: err.Error()}
	case errors.Is(err, core.ErrInvalidTransition), errors.Is(err, core.ErrAccountExists):
		status, resp = http.StatusConflict, ErrorResponse{Error: "Conflict", Details: err.Error()}
	case errors.Is(err, core.ErrWebhookSignature):
		status, resp = http.StatusBadRequest, ErrorResponse{Error: "Webhook signature verification failed"}
	case errors.Is(err, core.ErrWebhookProcessing):
		m.logger.Error("Stripe webhook processing failed", zap.Error(err))
		status, resp = http.StatusBadRequest, ErrorResponse{Error: "Webhook processing error", Details: err.Error()}
	case errors.Is(err, core.ErrUserStripeNotLinked):
		status, resp = http.StatusBadRequest, ErrorResponse{Error: "User not linked to payment provider", Details: err.Error()}
	case errors.Is(err, core.ErrStripeClient):
		m.logger.Error("Stripe client error", zap.Error(err))
		status, resp = http.StatusServiceUnavailable, ErrorResponse{Error: "Payment provider error", Details: "Could not complete the operation with the payment provider."}
	default:
		m.logger.Error("Internal server error", zap.String("path", c.FullPath()), zap.Error(err))
		status, resp = http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(status, resp)
}
