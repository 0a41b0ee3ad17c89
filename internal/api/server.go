// Package api serves the edit session over HTTP: one command in, one JSON
// response out.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abelbrown/roundup/internal/logging"
)

// NewServer creates a gin engine with all routes configured. gatherer may
// be nil to leave out /metrics.
func NewServer(handler *Handler, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(requestLogger())
	r.Use(gin.Recovery())

	setupRoutes(r, handler, gatherer)
	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, gatherer prometheus.Gatherer) {
	r.GET("/health", handler.GetHealth)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/draft", handler.GetDraft)
		v1.POST("/commands", handler.PostCommand)
		v1.POST("/abort", handler.PostAbort)
		v1.GET("/editions", handler.ListEditions)
	}

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// requestLogger writes one line per request to the process log.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client", c.ClientIP())
	}
}
