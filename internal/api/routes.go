package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/core"
	"github.com/synera-br/splennet-backend/internal/metrics"
	"github.com/synera-br/splennet-backend/internal/middleware"
)

// Services are the core services exposed over HTTP.
type Services struct {
	Users   core.UserService
	Usage   core.UsageService
	Essays  core.EssayService
	Reviews core.ReviewService
	Billing core.BillingService
	Catalog *core.PlanCatalog
}

// SetupRoutes registers the API on router. Global middleware (logging, recovery, CORS)
// is expected to be installed by the caller.
func SetupRoutes(router *gin.Engine, services Services, verifier middleware.TokenVerifier, logger *zap.Logger) {
	authMW := middleware.NewAuthMiddleware(verifier, logger)
	mapper := errorMapper{catalog: services.Catalog, logger: logger}

	userHandler := newUserHandler(services.Users, services.Usage, mapper)
	essayHandler := newEssayHandler(services.Essays, mapper)
	reviewHandler := newReviewHandler(services.Reviews, mapper)
	billingHandler := newBillingHandler(services.Billing, services.Catalog, mapper, logger)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/plans", billingHandler.Plans)

		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/signup", userHandler.SignUp)
			authGroup.POST("/signout", authMW.VerifyToken(), userHandler.SignOut)
		}

		usersGroup := apiV1.Group("/users", authMW.VerifyToken())
		{
			usersGroup.POST("/initialize", userHandler.Initialize)
			usersGroup.GET("/me", userHandler.Me)
		}

		usageGroup := apiV1.Group("/usage", authMW.VerifyToken())
		{
			usageGroup.GET("", userHandler.Usage)
			usageGroup.GET("/events", userHandler.UsageHistory)
		}

		essaysGroup := apiV1.Group("/essays", authMW.VerifyToken())
		{
			essaysGroup.POST("", essayHandler.Generate)
			essaysGroup.GET("", essayHandler.List)
			essaysGroup.GET("/:essayId", essayHandler.Get)
			essaysGroup.PUT("/:essayId", essayHandler.Update)
			essaysGroup.POST("/:essayId/improve", essayHandler.Improve)
		}

		reviewsGroup := apiV1.Group("/reviews", authMW.VerifyToken())
		{
			reviewsGroup.POST("", reviewHandler.Submit)
			reviewsGroup.GET("", reviewHandler.ListOwn)
		}

		reviewerGroup := apiV1.Group("/reviewer", authMW.VerifyToken(), middleware.RequireReviewer())
		{
			reviewerGroup.GET("/reviews", reviewHandler.Queue)
			reviewerGroup.POST("/reviews/:reviewId/claim", reviewHandler.Claim)
			reviewerGroup.POST("/reviews/:reviewId/complete", reviewHandler.Complete)
		}

		billingGroup := apiV1.Group("/billing")
		{
			billingGroup.POST("/create-checkout-session", authMW.VerifyToken(), billingHandler.CreateCheckoutSession)
			billingGroup.POST("/create-portal-session", authMW.VerifyToken(), billingHandler.CreatePortalSession)
			billingGroup.POST("/webhooks/stripe", billingHandler.HandleStripeWebhook)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("API routes configured under /api/v1, /health and /metrics")
}
