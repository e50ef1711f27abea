// Package routes defines the HTTP routes for the loop service.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/obsidian-neural/loop-service/internal/api/handlers"
	"github.com/obsidian-neural/loop-service/internal/api/middleware"
)

// Config holds the dependencies for setting up routes.
type Config struct {
	HealthHandler   *handlers.HealthHandler
	GenerateHandler *handlers.GenerateHandler
	AuthHandler     *handlers.AuthHandler
	SessionsHandler *handlers.SessionsHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

// Setup configures all routes on the Gin engine.
func Setup(r *gin.Engine, cfg *Config) {
	// Health check routes (no auth required)
	r.GET("/health", cfg.HealthHandler.Health)
	r.GET("/ready", cfg.HealthHandler.Ready)
	r.GET("/live", cfg.HealthHandler.Live)

	v1 := r.Group("/api/v1")
	v1.Use(cfg.AuthMiddleware.RequireAPIKey())
	{
		v1.POST("/generate", cfg.GenerateHandler.Generate)
		v1.POST("/verify_key", cfg.AuthHandler.VerifyKey)
		v1.GET("/auth/credits/check", cfg.AuthHandler.CheckCredits)
		v1.POST("/session/reset", cfg.SessionsHandler.ResetSession)
	}

	r.NoRoute(middleware.NotFound())
}

// SetupWithMiddleware sets up routes with common middleware.
func SetupWithMiddleware(r *gin.Engine, cfg *Config, loggingMw *middleware.LoggingMiddleware, errorMw *middleware.ErrorMiddleware) {
	// Apply global middleware
	r.Use(loggingMw.Logger())
	r.Use(errorMw.Recovery())
	r.Use(gin.Recovery())

	// Setup routes
	Setup(r, cfg)
}
