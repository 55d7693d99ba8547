package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/strandchat/gateway/internal/auth"
	"github.com/strandchat/gateway/internal/config"
	"github.com/strandchat/gateway/internal/gateway"
)

// NewServer builds the HTTP server: health, the websocket endpoint, and the
// internal dispatch endpoint the control plane posts pass-through events to.
func NewServer(hub *gateway.Hub, verifier *auth.Verifier, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())

	router.GET("/healthz", healthHandler)

	ws := NewWSHandler(hub, verifier, cfg, logger)
	router.GET("/v1/ws", ws.Handle)

	internal := router.Group("/internal", DispatchAuthMiddleware(cfg.DispatchToken, logger))
	internal.POST("/dispatch", NewDispatchHandler(hub, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
