package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kelsos/keeper-sync/internal/logger"
)

// SetupRouter builds the HTTP surface: the landing route, the dApp route and
// a few read-only endpoints next to them.
func SetupRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), cors.Default())

	router.GET("/", h.Landing)
	router.GET("/state", h.State)
	router.GET("/notifications", h.Notifications)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/:address", h.Dapp)
	router.POST("/:address/call/:function", h.Call)

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Request(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
