package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/filevault/filevault/cmd/filevault/container"
	"github.com/filevault/filevault/cmd/filevault/routes"
	"github.com/filevault/filevault/common/bootstrap"
	"github.com/filevault/filevault/common/db"
	"github.com/filevault/filevault/common/db/migrations"
	"github.com/filevault/filevault/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (config, logger, DB, blob store)
	components, err := bootstrap.Setup(ctx, "filevault",
		bootstrap.WithDBInitHook(func(d *db.DB) error {
			return migrations.Run(ctx, d.Config().ConnString())
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap filevault: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}
	defer serviceContainer.Close()

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, serviceContainer)

	routes.RegisterFileRoutes(e, serviceContainer)

	// Serve with graceful shutdown
	srv := server.New("filevault", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.RequestID())
}

// setupHealthCheck registers the health check endpoint. Readiness covers
// both Postgres and the limiter's Redis backend.
func setupHealthCheck(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ec echo.Context) error {
		if err := c.Health(ec.Request().Context()); err != nil {
			return ec.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return ec.JSON(200, map[string]string{
			"status":  "ok",
			"service": "filevault",
		})
	})
}
