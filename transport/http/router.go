package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// SetupRouter sets up the Gin router
func SetupRouter(verifier Verifier, frontendURL string, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger), CORSMiddleware(frontendURL))

	// Create handlers
	handlers := NewVerifyHandlers(verifier)

	router.GET("/healthz", handlers.Health)

	// Verify-via-link routes
	router.GET("/challenge/:userId", handlers.Challenge)
	router.POST("/verify", handlers.Verify)
	router.GET("/link/:token", handlers.Link)

	return router
}
