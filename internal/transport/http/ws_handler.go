package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strandchat/gateway/internal/auth"
	"github.com/strandchat/gateway/internal/config"
	"github.com/strandchat/gateway/internal/gateway"
	"github.com/strandchat/gateway/internal/proto"
)

const pingInterval = 30 * time.Second

// WSHandler upgrades HTTP connections and bridges them to gateway.Conn.
type WSHandler struct {
	hub      *gateway.Hub
	verifier *auth.Verifier
	cfg      config.Config
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *gateway.Hub, verifier *auth.Verifier, cfg config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, verifier: verifier, cfg: cfg, log: logger}
}

// Handle authenticates, upgrades, and drives a single connection.
func (h *WSHandler) Handle(g *gin.Context) {
	ctx := g.Request.Context()

	claims, err := h.authenticate(g.Request)
	if err != nil {
		g.JSON(stdhttp.StatusUnauthorized, proto.Error{Code: "unauthorized", Msg: "invalid token"})
		return
	}

	conn, err := websocket.Accept(g.Writer, g.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := gateway.NewConn(uuid.NewString(), claims.UserID, claims.Username, h.cfg.SendBuffer)

	ready, err := h.hub.Connect(ctx, client)
	if err != nil {
		h.log.Error().Err(err).Int64("identity", client.Identity).Msg("connect failed")
		conn.Close(websocket.StatusInternalError, "connect failed")
		return
	}
	defer h.hub.Disconnect(context.Background(), client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := wsjson.Write(ctx, conn, outboundFromEvent(&gateway.Event{Kind: gateway.EventReady, Ready: ready})); err != nil {
		h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("write ready")
		return
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// authenticate resolves the connection's identity from a bearer token in the
// Authorization header or the token query parameter.
func (h *WSHandler) authenticate(r *stdhttp.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		return nil, auth.ErrInvalidToken
	}
	return h.verifier.Verify(token)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *gateway.Conn) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		h.dispatch(ctx, client, inbound)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *gateway.Conn) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
