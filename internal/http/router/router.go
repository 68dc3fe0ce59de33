// Package router assembles the gin engine: global middleware, health
// endpoint, route groups and module registration.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	apphttp "smiledesign_backend/internal/http"
	"smiledesign_backend/platform/httpkit"
)

func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app)))

	engine.GET("/api/health", healthHandler(app))

	v1 := engine.Group("/api/v1")

	protected := v1.Group("")
	protected.Use(httpkit.AuthRequired(app.Config))

	admin := protected.Group("/admin")
	admin.Use(httpkit.RequireRole(httpkit.RoleAdmin))

	ctx := &apphttp.RouterContext{
		Engine:    engine,
		V1:        v1,
		Protected: protected,
		Admin:     admin,
		Config:    app.Config,
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Info("module routes registered", "module", module.Name())
	}

	return engine
}

func corsConfig(app *apphttp.App) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Webhook-API-Key"}
	cfg.AllowCredentials = app.Config.GetCORSAllowCreds()

	if app.Config.GetCORSAllowAll() {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else if origins := app.Config.GetCORSOrigins(); len(origins) > 0 {
		cfg.AllowOrigins = origins
	} else {
		cfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	return cfg
}

func healthHandler(app *apphttp.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := app.Health.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
