package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/strandchat/gateway/internal/proto"
)

// internalTokenHeader authorizes control-plane requests on internal routes.
const internalTokenHeader = "X-Internal-Token"

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// DispatchAuthMiddleware validates the shared internal token on
// control-plane routes.
func DispatchAuthMiddleware(token string, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(internalTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			logger.Debug().Str("path", c.Request.URL.Path).Msg("rejected internal request")
			c.JSON(http.StatusUnauthorized, proto.Error{Code: "unauthorized", Msg: "invalid internal token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
