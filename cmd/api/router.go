package api

import (
	"net/http"

	"waiting-backend/internal/auth/delivery"
	authUsecase "waiting-backend/internal/auth/usecase"
	waitingDelivery "waiting-backend/internal/waiting/delivery"
	"waiting-backend/pkg/sse"

	"github.com/gin-gonic/gin"
)

// Routes are the handlers mounted by SetupRoutes
type Routes struct {
	Auth     authUsecase.AuthUsecase
	Waiting  *waitingDelivery.WaitingHandler
	Devices  *waitingDelivery.DeviceHandler
	Settings *SettingsHandler
	SSE      *sse.Manager
}

func SetupRoutes(r *gin.Engine, routes Routes) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		protected := api.Group("")
		protected.Use(delivery.AuthMiddleware(routes.Auth))

		// SSE endpoint
		if routes.SSE != nil {
			protected.GET("/events", func(c *gin.Context) {
				routes.SSE.ServeHTTP(c, c.GetString(delivery.ContextUserID))
			})
		}

		routes.Waiting.RegisterRoutes(protected.Group("/waiting"))

		devices := protected.Group("/devices")
		{
			devices.POST("", routes.Devices.Register)
			devices.DELETE("/:token", routes.Devices.Unregister)
		}

		settings := protected.Group("/settings")
		{
			settings.GET("/waiting", routes.Settings.GetWaitingSettings)
			settings.PUT("/waiting", routes.Settings.UpdateWaitingSettings)
		}
	}
}
