package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the API routes
func SetupRoutes(handler *Handler) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(Logger())

	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		batches := v1.Group("/batches")
		{
			batches.GET("", handler.ListBatches)
			batches.GET("/:id", handler.GetBatch)
			batches.GET("/:id/outcomes", handler.GetOutcomes)
			batches.GET("/:id/summary", handler.GetSummary)
		}
	}

	return router
}
