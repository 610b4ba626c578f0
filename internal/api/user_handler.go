package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/synera-br/splennet-backend/internal/core"
	"github.com/synera-br/splennet-backend/internal/middleware"
	"github.com/synera-br/splennet-backend/internal/models"
)

// UserHandler handles accounts, profiles and usage.
type UserHandler struct {
	users  core.UserService
	usage  core.UsageService
	errors errorMapper
}

// newUserHandler creates a new UserHandler.
func newUserHandler(users core.UserService, usage core.UsageService, errors errorMapper) *UserHandler {
	return &UserHandler{users: users, usage: usage, errors: errors}
}

// SignUp handles POST /auth/signup.
func (h *UserHandler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	ent, err := h.users.SignUp(c.Request.Context(), req)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Message: "Account created", Data: ent})
}

// SignOut handles POST /auth/signout.
func (h *UserHandler) SignOut(c *gin.Context) {
	if err := h.users.SignOut(c.Request.Context(), c.GetString(middleware.UserIDKey)); err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Signed out"})
}

// Initialize handles POST /users/initialize. It is called after the client signs in and
// makes sure the entitlement record exists.
func (h *UserHandler) Initialize(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)
	ent, created, err := h.users.GetOrCreate(c.Request.Context(), identity)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, InitializeUserResponse{User: core.Reconcile(identity, ent), Created: created})
}

// Me handles GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)
	user, err := h.users.CurrentUser(c.Request.Context(), identity)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Usage handles GET /usage.
func (h *UserHandler) Usage(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)
	usage, err := h.users.Usage(c.Request.Context(), identity)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

// UsageHistory handles GET /usage/events?limit=.
func (h *UserHandler) UsageHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(core.DefaultHistoryLimit)))
	if err != nil || limit < 1 || limit > core.MaxHistoryLimit {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("limit must be between 1 and %d", core.MaxHistoryLimit)})
		return
	}
	events, err := h.usage.History(c.Request.Context(), c.GetString(middleware.UserIDKey), limit)
	if err != nil {
		h.errors.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
