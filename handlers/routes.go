package handlers

import (
	"time"

	"github.com/cutekitten000/backlog/catalog"
	"github.com/cutekitten000/backlog/middleware"
	"github.com/cutekitten000/backlog/monitoring"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts every endpoint on r. relay may be nil, in which case
// the catalog relay path is not served.
func RegisterRoutes(r *gin.Engine, api *API, relay *catalog.Relay) {
	// Public routes
	r.GET("/health", api.Health)
	r.GET("/metrics", monitoring.PrometheusHandler())

	authLimit := middleware.RateLimit("auth", 10, time.Minute)
	r.POST("/users", authLimit, api.Register)
	r.POST("/login", authLimit, api.Login)

	if relay != nil {
		r.POST("/api/*path", middleware.RateLimit("relay", 120, time.Minute), relay.Handler())
	}

	protected := r.Group("/")
	protected.Use(middleware.AuthRequired(api.Tokens, api.Sessions))
	{
		protected.POST("/logout", api.Logout)
		protected.GET("/me", api.Me)
		protected.GET("/ws", api.Live)

		protected.GET("/backlog", api.GetBacklog)
		protected.PUT("/backlog/filter", api.SetView)
		protected.GET("/backlog/filters", api.GetFilters)
		protected.GET("/backlog/stats", api.GetStats)
		protected.GET("/backlog/contains/:apiGameId", api.Contains)

		writes := middleware.RateLimit("writes", 300, time.Minute)
		protected.POST("/games", writes, api.CreateGame)
		protected.PUT("/games/:id", writes, api.UpdateGame)
		protected.DELETE("/games/:id", writes, api.DeleteGame)

		protected.GET("/games/:id/dlcs", api.ListDlcs)
		protected.GET("/games/:id/dlcs/available", api.AvailableDlcs)
		protected.POST("/games/:id/dlcs", writes, api.CreateDlc)
		protected.POST("/games/:id/dlcs/batch", writes, api.CreateDlcs)
		protected.PUT("/games/:id/dlcs/:dlcId", writes, api.UpdateDlc)
		protected.DELETE("/games/:id/dlcs/:dlcId", writes, api.DeleteDlc)

		search := middleware.RateLimit("catalog", 60, time.Minute)
		protected.GET("/catalog/search", search, api.SearchCatalog)
		protected.GET("/catalog/games/:apiGameId/dlcs", search, api.CatalogDlcs)
	}
}
