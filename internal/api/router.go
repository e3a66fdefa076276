package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Register binds the auction endpoints onto the given gin engine. wsHandler
// is optional; when nil no websocket route is exposed.
func Register(e *gin.Engine, h *auctionHandler, wsHandler gin.HandlerFunc, allowedOrigins []string) {
	e.Use(corsMiddleware(allowedOrigins))

	e.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Live Auction Platform API",
			"endpoints": gin.H{
				"items":  "/api/items",
				"health": "/api/health",
			},
		})
	})

	apiGroup := e.Group("/api")
	{
		apiGroup.GET("/items", h.handleListItems)
		apiGroup.GET("/items/:id", h.handleGetItem)
		apiGroup.GET("/items/:id/history", h.handleGetHistory)
		apiGroup.GET("/items/:id/archive", h.handleGetArchive)
		apiGroup.GET("/items/:id/thumbnail", h.handleGetThumbnail)
		apiGroup.POST("/items", h.handleCreateItem)
		apiGroup.POST("/items/:id/bids", h.handlePlaceBid)
		apiGroup.GET("/health", h.handleHealth)
		apiGroup.GET("/metrics", h.handleMetrics)
	}

	if wsHandler != nil {
		e.GET("/ws/items/:id", wsHandler)
	}

	e.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "route not found"})
	})
}

// corsMiddleware mirrors the allowed-origins policy of the websocket
// gateway for the REST endpoints.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(origin, allowed) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == origin || o == "*" {
			return true
		}
	}
	return false
}
