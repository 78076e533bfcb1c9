package routes

import (
	"stockwatch_backend/internal/handlers"
	"stockwatch_backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все HTTP-маршруты.
func RegisterRoutes(ginRouter *gin.Engine, appHandlers *handlers.AppHandlers) {
	api := ginRouter.Group("/api/v1")
	{
		// Публичные: auth, каталог планов, billing webhook
		appHandlers.AuthHandler.RegisterRoutes(api)
		appHandlers.SubscriptionHandler.RegisterRoutes(api)
	}

	protected := ginRouter.Group("/api/v1")
	protected.Use(middleware.AuthMiddleware())
	{
		appHandlers.AuthHandler.RegisterProtectedRoutes(protected)
		appHandlers.UserHandler.RegisterRoutes(protected)
		appHandlers.SubscriptionHandler.RegisterProtectedRoutes(protected)
		appHandlers.WatchlistHandler.RegisterRoutes(protected)
	}
}
