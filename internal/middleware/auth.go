package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/models"
)

// Context keys set by VerifyToken.
const (
	UserIDKey   = "userID"
	IdentityKey = "identity"
)

// ErrorResponse mirrors api.ErrorResponse; it is redeclared here to avoid an import cycle.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TokenVerifier verifies an ID token and returns the identity it asserts.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*models.Identity, error)
}

// AuthMiddleware authenticates requests with identity provider ID tokens.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	if verifier == nil {
		panic("AuthMiddleware requires a non-nil TokenVerifier")
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// VerifyToken checks the bearer token in the Authorization header and stores the
// identity and its UID in the gin context.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		identity, err := m.verifier.Verify(c.Request.Context(), parts[1])
		if err != nil {
			m.logger.Warn("Error verifying ID token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}

		c.Set(UserIDKey, identity.UID)
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// RequireReviewer rejects callers whose token lacks the reviewer claim. It must run after VerifyToken.
func RequireReviewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
			return
		}
		if !identity.Reviewer {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "Reviewer access required"})
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by VerifyToken.
func IdentityFrom(c *gin.Context) (*models.Identity, bool) {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*models.Identity)
	return identity, ok && identity != nil && identity.UID != ""
}
