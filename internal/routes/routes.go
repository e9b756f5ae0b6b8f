package routes

import (
	"filecache-api/internal/handlers"
	"filecache-api/internal/middleware"
	"filecache-api/internal/realtime"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(cacheHandler *handlers.CacheHandler, hub *realtime.Hub) *gin.Engine {
	ginRouter := gin.Default()

	// CORS middleware (for browser clients)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "HEAD, GET, PUT, DELETE, POST, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"clients": hub.Len(),
		})
	})

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/login", handlers.Login)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	{
		protectedRoutes.HEAD("/cache/:key", cacheHandler.Head)
		protectedRoutes.GET("/cache/:key", cacheHandler.Get)
		protectedRoutes.PUT("/cache/:key", cacheHandler.Put)
		protectedRoutes.DELETE("/cache/:key", cacheHandler.Delete)
		protectedRoutes.DELETE("/cache", cacheHandler.Clear)
		protectedRoutes.GET("/entries", cacheHandler.List)
		protectedRoutes.GET("/stats", cacheHandler.Stats)
		protectedRoutes.GET("/ws", handlers.WebSocketHandler(hub))
	}

	return ginRouter
}
