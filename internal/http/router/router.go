// Package router builds the gin engine shared by every HTTP surface.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "searchahouse/internal/http"
	"searchahouse/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const healthTimeout = 2 * time.Second

// New creates the engine, installs middleware and mounts every module.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app)))

	engine.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/api/ready", readiness(app))

	if app.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(app.Metrics))
	}

	v1 := engine.Group("/api/v1")
	if app.RateLimit > 0 {
		burst := app.RateBurst
		if burst < 1 {
			burst = 1
		}
		v1.Use(httpkit.NewIPRateLimiter(rate.Limit(app.RateLimit), burst, app.Logger).RateLimit())
	}

	rc := &apphttp.RouterContext{Engine: engine, V1: v1}
	for _, m := range app.Modules {
		m.RegisterRoutes(rc)
		app.Logger.Debug("module routes registered", "module", m.Name())
	}

	return engine
}

func corsConfig(app *apphttp.App) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", httpkit.HeaderRequestID},
		ExposeHeaders:    []string{"Location", httpkit.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if app.Config == nil || app.Config.GetCORSAllowAll() {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = app.Config.GetCORSOrigins()
	cfg.AllowCredentials = app.Config.GetCORSAllowCreds()
	return cfg
}

func readiness(app *apphttp.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		checks := make(map[string]string, len(app.Health))
		healthy := true
		for name, checker := range app.Health {
			if err := checker.Ping(ctx); err != nil {
				checks[name] = err.Error()
				healthy = false
				continue
			}
			checks[name] = "ok"
		}

		if !healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
	}
}
