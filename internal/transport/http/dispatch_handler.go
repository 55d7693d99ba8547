package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/strandchat/gateway/internal/gateway"
	"github.com/strandchat/gateway/internal/proto"
)

// dispatchRequest is a control-plane originated event to re-broadcast: new
// or edited messages, reactions, thread creation and the like. The gateway
// never inspects the payload.
type dispatchRequest struct {
	Event   string          `json:"event"`
	Room    proto.Room      `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// NewDispatchHandler accepts pass-through events from the control plane and
// fans them out to the named room's subscribers.
func NewDispatchHandler(hub *gateway.Hub, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dispatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, proto.Error{Code: "bad_request", Msg: "malformed dispatch body"})
			return
		}
		if req.Event == "" {
			c.JSON(http.StatusBadRequest, proto.Error{Code: "bad_request", Msg: "event is required"})
			return
		}
		kind, ok := gateway.ParseRoomKind(req.Room.Kind)
		if !ok {
			c.JSON(http.StatusBadRequest, proto.Error{Code: "bad_request", Msg: "unknown room kind"})
			return
		}

		hub.DispatchRoomEvent(gateway.RoomKey{Kind: kind, ID: req.Room.ID}, req.Event, req.Payload)

		logger.Debug().Str("event", req.Event).Str("room", req.Room.Kind).Int64("room_id", req.Room.ID).Msg("dispatched control-plane event")
		c.Status(http.StatusAccepted)
	}
}
