package http

import (
	"context"
	"encoding/json"
	"time"

	"github.com/strandchat/gateway/internal/gateway"
	"github.com/strandchat/gateway/internal/proto"
)

// dispatch maps one inbound frame onto a hub operation. Malformed or
// out-of-range frames are dropped without terminating the connection.
func (h *WSHandler) dispatch(ctx context.Context, client *gateway.Conn, inbound proto.Inbound) {
	switch inbound.Type {
	case proto.InboundTypeSubscribe:
		var data proto.SubscribeData
		room, ok := decodeRoom(inbound.Data, &data, func() proto.Room { return data.Room })
		if !ok {
			h.drop(client, inbound.Type)
			return
		}
		h.hub.Subscribe(client, room)

	case proto.InboundTypeUnsubscribe:
		var data proto.SubscribeData
		room, ok := decodeRoom(inbound.Data, &data, func() proto.Room { return data.Room })
		if !ok {
			h.drop(client, inbound.Type)
			return
		}
		h.hub.Unsubscribe(client, room)

	case proto.InboundTypeStatus:
		var data proto.StatusData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			h.drop(client, inbound.Type)
			return
		}
		h.hub.SetStatus(client, data.Status, data.Custom)

	case proto.InboundTypeTyping:
		var data proto.TypingData
		room, ok := decodeRoom(inbound.Data, &data, func() proto.Room { return data.Room })
		if !ok {
			h.drop(client, inbound.Type)
			return
		}
		h.hub.Typing(client, room)

	case proto.InboundTypeVoiceJoin:
		var data proto.VoiceJoinData
		room, ok := decodeRoom(inbound.Data, &data, func() proto.Room { return data.Room })
		if !ok {
			h.drop(client, inbound.Type)
			return
		}
		h.hub.VoiceJoin(ctx, client, room, data.ServerID)

	case proto.InboundTypeVoiceLeave:
		var data proto.VoiceLeaveData
		room, ok := decodeRoom(inbound.Data, &data, func() proto.Room { return data.Room })
		if !ok {
			h.drop(client, inbound.Type)
			return
		}
		h.hub.VoiceLeave(ctx, client, room)

	case proto.InboundTypeVoiceState:
		var data proto.VoiceStateData
		room, ok := decodeRoom(inbound.Data, &data, func() proto.Room { return data.Room })
		if !ok {
			h.drop(client, inbound.Type)
			return
		}
		h.hub.VoiceState(ctx, client, room, data.SelfMute, data.SelfDeafen)

	case proto.InboundTypeSignal:
		var data proto.SignalData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			h.drop(client, inbound.Type)
			return
		}
		kind, ok := gateway.ParseSignalKind(data.Kind)
		if !ok {
			h.drop(client, inbound.Type)
			return
		}
		roomKind, ok := gateway.ParseRoomKind(data.Room.Kind)
		if !ok {
			h.drop(client, inbound.Type)
			return
		}
		h.hub.Signal(client, data.Target, gateway.RoomKey{Kind: roomKind, ID: data.Room.ID}, kind, data.Payload)

	case proto.InboundTypeRecover:
		var data proto.RecoverData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			h.drop(client, inbound.Type)
			return
		}
		h.hub.Recover(ctx, client, time.UnixMilli(data.SinceMillis))

	default:
		h.drop(client, inbound.Type)
	}
}

func (h *WSHandler) drop(client *gateway.Conn, kind string) {
	h.log.Debug().Str("conn_id", client.ID).Str("type", kind).Msg("dropping malformed frame")
}

// decodeRoom unmarshals data into dst and validates the room it carries.
func decodeRoom(data json.RawMessage, dst any, room func() proto.Room) (gateway.RoomKey, bool) {
	if err := json.Unmarshal(data, dst); err != nil {
		return gateway.RoomKey{}, false
	}
	r := room()
	kind, ok := gateway.ParseRoomKind(r.Kind)
	if !ok {
		return gateway.RoomKey{}, false
	}
	return gateway.RoomKey{Kind: kind, ID: r.ID}, true
}

func outboundFromEvent(event *gateway.Event) proto.Outbound {
	switch event.Kind {
	case gateway.EventReady:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: "ready", Data: event.Ready}
	case gateway.EventPresence:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: "presence", Data: event.Presence}
	case gateway.EventTyping:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: "typing", Data: event.Typing}
	case gateway.EventVoiceJoined:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: "voice_joined", Data: event.Voice}
	case gateway.EventVoiceLeft:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: "voice_left", Data: event.Voice}
	case gateway.EventVoiceState:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: "voice_state", Data: event.Voice}
	case gateway.EventVoiceRoster:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: "voice_roster", Data: event.Roster}
	case gateway.EventVoiceOccupancy:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: "voice_occupancy", Data: event.Occupancy}
	case gateway.EventSignal:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: "signal_" + string(event.Signal.Kind), Data: event.Signal}
	case gateway.EventMissedBatch:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: "missed_batch", Data: event.Missed}
	case gateway.EventDispatch:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: event.Dispatch.Event, Data: event.Dispatch}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
