package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/filevault/filevault/cmd/filevault/container"
	vaultmw "github.com/filevault/filevault/cmd/filevault/middleware"
	commonmw "github.com/filevault/filevault/common/middleware"
)

// RegisterFileRoutes registers the file vault routes.
// Every route requires a resolved owner and passes the per-owner rate
// limiter before any core logic runs.
func RegisterFileRoutes(e *echo.Echo, c *container.Container) {
	api := e.Group("/api/files", vaultmw.RequireOwnerID())

	if c.Components.Config.RateLimit.Enabled {
		api.Use(commonmw.OwnerRateLimitMiddleware(
			c.RateLimiter,
			c.Components.Config.RateLimit.RequestsPerWindow,
			c.Components.Config.RateLimit.WindowSeconds,
		))
	}

	// Fixed paths before :id so "storage_stats" is not parsed as an id
	api.GET("/storage_stats", c.FileHandler.StorageStats)
	api.GET("/file_types", c.FileHandler.FileTypes)

	api.POST("", c.FileHandler.Upload)
	api.GET("", c.FileHandler.List)
	api.GET("/:id", c.FileHandler.Get)
	api.DELETE("/:id", c.FileHandler.Delete)
	api.GET("/:id/download", c.FileHandler.Download)
}
