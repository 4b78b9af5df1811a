// Package router provides search service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-search/internal/search/handler"
)

// Register registers the search service routes.
func Register(engine *gin.Engine, h *handler.SearchHandler) {
	logger.Info("Registering search routes...")

	// Search endpoints
	engine.POST("/search", h.Search)
	engine.POST("/search/stream", h.Stream)
	engine.GET("/ws", h.WebSocket)

	// Cache endpoints
	engine.GET("/cache-stats", h.CacheStats)
	engine.POST("/clear-cache", h.ClearCache)

	// Ops endpoints
	engine.GET("/health", h.Health)
	engine.GET("/metrics", h.Metrics)

	logger.Info("HTTP routes registered")
}
