package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/synera-br/splennet-backend/internal/core"
	"github.com/synera-br/splennet-backend/internal/middleware"
	"github.com/synera-br/splennet-backend/internal/models"
)

// EssayHandler handles essay generation and editing.
type EssayHandler struct {
	essays core.EssayService
	errors errorMapper
}

// newEssayHandler creates a new EssayHandler.
func newEssayHandler(essays core.EssayService, errors errorMapper) *EssayHandler {
	return &EssayHandler{essays: essays, errors: errors}
}

// Generate handles POST /essays.
func (h *EssayHandler) Generate(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)
	var req models.GenerateEssayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	result, err := h.essays.Generate(c.Request.Context(), identity, req)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	status := http.StatusCreated
	if result.Essay.ID == "" {
		status = http.StatusOK
	}
	c.JSON(status, EssayResponse{Essay: result.Essay, Usage: result.Usage, Warnings: warningMessages(result.Warnings)})
}

// List handles GET /essays.
func (h *EssayHandler) List(c *gin.Context) {
	essays, err := h.essays.List(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, essays)
}

// Get handles GET /essays/:essayId.
func (h *EssayHandler) Get(c *gin.Context) {
	essay, err := h.essays.Get(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("essayId"))
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, essay)
}

// Update handles PUT /essays/:essayId.
func (h *EssayHandler) Update(c *gin.Context) {
	var req models.UpdateEssayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	essay, err := h.essays.UpdateText(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("essayId"), req.GeneratedText)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, essay)
}

// Improve handles POST /essays/:essayId/improve.
func (h *EssayHandler) Improve(c *gin.Context) {
	var req models.ImproveEssayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	result, err := h.essays.Improve(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("essayId"), req.Feedback)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, ImproveResponse{Essay: result.Essay, Warnings: warningMessages(result.Warnings)})
}
