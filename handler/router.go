package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/contractscore/config"
	"github.com/AnTengye/contractscore/middleware"
	"github.com/AnTengye/contractscore/service"
)

// NewRouter wires the middleware chain and every API route.
func NewRouter(cfg *config.Config, processor *service.Processor) *gin.Engine {
	authHandler := NewAuthHandler(cfg)
	contractHandler := NewContractHandler(processor)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(noCacheMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	api.POST("/auth/login", middleware.RateLimit(20, time.Minute), authHandler.Login)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	protected.Use(middleware.RateLimit(100, time.Minute))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		protected.GET("/contracts", contractHandler.List)
		protected.GET("/contracts/:id", contractHandler.Get)
		protected.GET("/contracts/:id/status", contractHandler.GetStatus)
		protected.GET("/contracts/:id/result", contractHandler.GetResult)
		protected.GET("/contracts/:id/download", contractHandler.Download)

		writers := protected.Group("/")
		writers.Use(middleware.RequireRole(middleware.RoleAnalyst))
		writers.POST("/contracts/upload", contractHandler.Upload)
		writers.POST("/contracts/:id/process", contractHandler.Process)
		writers.GET("/contracts/export", contractHandler.Export)
	}
	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		h.Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func noCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Next()
	}
}
