package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/synera-br/splennet-backend/internal/core"
	"github.com/synera-br/splennet-backend/internal/middleware"
	"github.com/synera-br/splennet-backend/internal/models"
)

// ReviewHandler handles human review requests and the reviewer workflow.
type ReviewHandler struct {
	reviews core.ReviewService
	errors  errorMapper
}

// newReviewHandler creates a new ReviewHandler.
func newReviewHandler(reviews core.ReviewService, errors errorMapper) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, errors: errors}
}

// Submit handles POST /reviews.
func (h *ReviewHandler) Submit(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)
	var req models.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	result, err := h.reviews.Submit(c.Request.Context(), identity, req)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, ReviewResponse{Review: result.Review, Usage: result.Usage, Warnings: warningMessages(result.Warnings)})
}

// ListOwn handles GET /reviews.
func (h *ReviewHandler) ListOwn(c *gin.Context) {
	reviews, err := h.reviews.ListOwn(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// Queue handles GET /reviewer/reviews?status=.
func (h *ReviewHandler) Queue(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)
	reviews, err := h.reviews.ListQueue(c.Request.Context(), identity, models.ReviewStatus(c.Query("status")))
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// Claim handles POST /reviewer/reviews/:reviewId/claim.
func (h *ReviewHandler) Claim(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)
	review, err := h.reviews.Claim(c.Request.Context(), identity, c.Param("reviewId"))
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// Complete handles POST /reviewer/reviews/:reviewId/complete.
func (h *ReviewHandler) Complete(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)
	var req models.CompleteReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	review, err := h.reviews.Complete(c.Request.Context(), identity, c.Param("reviewId"), req.Feedback)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}
