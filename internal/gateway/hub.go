package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/strandchat/gateway/internal/bus"
	"github.com/strandchat/gateway/internal/store"
)

// Hub wires the session registry, presence tracker, room membership manager,
// voice coordinator, signaling relay and reconnect catch-up into one
// coordination layer. Transport handlers call its methods from per-connection
// read loops; ordering is per-connection FIFO only.
type Hub struct {
	log      zerolog.Logger
	registry *Registry
	presence *Presence
	rooms    *Rooms
	voice    *Voice
	relay    *Relay
	recovery *Recovery
	members  store.MembershipStore
}

// NewHub constructs the coordination hub on the given store and bus.
func NewHub(logger *zerolog.Logger, st store.Store, b bus.Bus, recoverLimit int) *Hub {
	rooms := NewRooms(logger, b)
	voice := NewVoice(logger, rooms, st)
	return &Hub{
		log:      logger.With().Str("component", "hub").Logger(),
		registry: NewRegistry(),
		presence: NewPresence(logger, rooms),
		rooms:    rooms,
		voice:    voice,
		relay:    NewRelay(logger, voice),
		recovery: NewRecovery(logger, st, st, recoverLimit),
		members:  st,
	}
}

// Start attaches the hub to the pub/sub backbone. It must be called once
// before connections are accepted.
func (h *Hub) Start(ctx context.Context) error {
	if err := h.rooms.Start(ctx); err != nil {
		return fmt.Errorf("start rooms: %w", err)
	}
	return nil
}

// Connect admits an authenticated connection: records it in the session
// registry, subscribes it to the rooms its persisted membership implies, and
// runs the presence transition. Returns the ready view for the connection.
func (h *Hub) Connect(ctx context.Context, c *Conn) (*ReadyInfo, error) {
	servers, err := h.members.ListServers(ctx, c.Identity)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	conversations, err := h.members.ListConversations(ctx, c.Identity)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	first := h.registry.Register(c)

	serverRooms := make([]RoomKey, 0, len(servers))
	allRooms := make([]RoomKey, 0, len(servers)+len(conversations))
	for _, id := range servers {
		room := ServerRoom(id)
		serverRooms = append(serverRooms, room)
		allRooms = append(allRooms, room)
		h.rooms.Subscribe(c, room)
	}
	for _, id := range conversations {
		room := ChannelRoom(id)
		allRooms = append(allRooms, room)
		h.rooms.Subscribe(c, room)
	}

	h.presence.HandleConnect(c.Identity, first, serverRooms)

	h.log.Debug().Str("conn_id", c.ID).Int64("identity", c.Identity).Bool("first", first).Msg("connection admitted")

	return &ReadyInfo{
		Identity: c.Identity,
		Name:     c.Name,
		Status:   h.presence.StatusOf(c.Identity),
		Rooms:    allRooms,
	}, nil
}

// Disconnect runs cleanup for a closed connection: session registry first,
// then presence, then voice departure, then room unsubscription. Safe to call
// more than once for the same connection.
func (h *Hub) Disconnect(ctx context.Context, c *Conn) {
	last := h.registry.Unregister(c)
	h.presence.HandleDisconnect(c.Identity, last)
	h.voice.DisconnectCleanup(ctx, c)
	h.rooms.DropConn(c)

	h.log.Debug().Str("conn_id", c.ID).Int64("identity", c.Identity).Bool("last", last).Msg("connection cleaned up")
}

// Subscribe adds the connection to an on-demand room (a channel being viewed
// or a thread being opened). Voice and server rooms are managed elsewhere;
// requests for them are ignored.
func (h *Hub) Subscribe(c *Conn, room RoomKey) {
	if room.Kind != RoomChannel && room.Kind != RoomThread {
		return
	}
	h.rooms.Subscribe(c, room)
}

// Unsubscribe removes the connection from an on-demand room.
func (h *Hub) Unsubscribe(c *Conn, room RoomKey) {
	if room.Kind != RoomChannel && room.Kind != RoomThread {
		return
	}
	h.rooms.Unsubscribe(c, room)
}

// SetStatus applies an explicit presence request for the connection's
// identity.
func (h *Hub) SetStatus(c *Conn, status, custom string) {
	h.presence.SetStatus(c.Identity, status, custom)
}

// Typing notifies the room that the connection's user started typing. The
// sender does not receive its own echo.
func (h *Hub) Typing(c *Conn, room RoomKey) {
	h.rooms.Broadcast(room, &Event{
		Kind:   EventTyping,
		Typing: &TypingInfo{Room: room, Identity: c.Identity, Name: c.Name},
	}, c)
}

// VoiceJoin moves the connection's identity into the target voice room.
func (h *Hub) VoiceJoin(ctx context.Context, c *Conn, room RoomKey, serverID int64) {
	h.voice.Join(ctx, c, room, serverID)
}

// VoiceLeave removes the connection's identity from the voice room.
func (h *Hub) VoiceLeave(ctx context.Context, c *Conn, room RoomKey) {
	h.voice.Leave(ctx, c, room)
}

// VoiceState updates the identity's mute/deafen flags in the voice room.
func (h *Hub) VoiceState(ctx context.Context, c *Conn, room RoomKey, selfMute, selfDeafen bool) {
	h.voice.UpdateState(ctx, c.Identity, room, selfMute, selfDeafen)
}

// Signal relays a negotiation payload to one participant of the voice room.
func (h *Hub) Signal(c *Conn, target int64, room RoomKey, kind SignalKind, payload json.RawMessage) {
	h.relay.Relay(c, target, room, kind, payload)
}

// Recover replays messages missed since the given timestamp to this
// connection only.
func (h *Hub) Recover(ctx context.Context, c *Conn, since time.Time) {
	h.recovery.Recover(ctx, c, since)
}

// DispatchRoomEvent re-broadcasts a control-plane originated event to a room.
// The gateway does not originate or inspect these.
func (h *Hub) DispatchRoomEvent(room RoomKey, event string, payload json.RawMessage) {
	h.rooms.Broadcast(room, &Event{
		Kind:     EventDispatch,
		Dispatch: &DispatchInfo{Event: event, Room: room, Payload: payload},
	}, nil)
}
