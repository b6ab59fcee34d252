package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/brightcrm/brightcrm-auth/internal/account"
	"github.com/brightcrm/brightcrm-auth/internal/config"
	"github.com/brightcrm/brightcrm-auth/internal/http/handler"
	httpmiddleware "github.com/brightcrm/brightcrm-auth/internal/http/middleware"
	"github.com/brightcrm/brightcrm-auth/internal/middleware"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	r.POST("/login", authHandler.Login)
	r.POST("/logout", authHandler.Logout)
	r.GET("/me", authMiddleware.RequireSession, authHandler.Me)

	users := r.Group("/users", authMiddleware.RequireSession, authMiddleware.RequireRole(account.RoleAdmin))
	{
		users.GET("", authHandler.ListUsers)
		users.GET("/stats", authHandler.UserStats)
		users.GET("/role/:role", authHandler.ListUsersByRole)
		users.POST("/:id/lock", authHandler.LockUser)
		users.POST("/:id/unlock", authHandler.UnlockUser)
		users.POST("/:id/deactivate", authHandler.DeactivateUser)
		users.POST("/:id/reactivate", authHandler.ReactivateUser)
	}

	return r
}
