// internal/httpapi/server.go
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	cfgpkg "github.com/tamzrod/modbus2mqtt/internal/config"
)

// ServerName is sent in the Server header of every reply.
const ServerName = "modbus2MQTT/1.0"

// Server wraps gin and net/http.
type Server struct {
	srv *http.Server
}

// New builds the router: the REST responder at "/", health and readiness
// probes, and the metrics scrape endpoint.
func New(cfg cfgpkg.HTTPConfig, h *Handler, metricsHandler http.Handler, readyFn func() bool) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), serverHeader)

	if h != nil {
		r.GET("/", h.Serve)
		r.POST("/", h.Serve)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if readyFn == nil || readyFn() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.WriteTimeoutMs) * time.Millisecond,
	}
	return &Server{srv: srv}
}

// Start serves until Shutdown (blocking).
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func serverHeader(c *gin.Context) {
	c.Header("Server", ServerName)
	c.Next()
}
