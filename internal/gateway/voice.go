package gateway

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/strandchat/gateway/internal/store"
)

// Participant is a user's membership entry in a voice room. At most one voice
// room holds a record for any identity at any instant.
type Participant struct {
	Identity   int64
	Name       string
	Conn       *Conn
	SelfMute   bool
	SelfDeafen bool
}

func (p *Participant) info() ParticipantInfo {
	return ParticipantInfo{
		Identity:   p.Identity,
		Name:       p.Name,
		SelfMute:   p.SelfMute,
		SelfDeafen: p.SelfDeafen,
	}
}

// Voice coordinates voice room participation: join/switch/leave transitions,
// mute/deafen state, and the single-voice-room-per-identity invariant. The
// in-memory table is authoritative for live behavior; durable voice-state
// writes are best-effort and never block a transition.
type Voice struct {
	log    zerolog.Logger
	rooms  *Rooms
	states store.VoiceStateStore

	mu       sync.RWMutex
	channels map[RoomKey]map[int64]*Participant
	servers  map[RoomKey]int64
}

// NewVoice constructs the voice session coordinator.
func NewVoice(logger *zerolog.Logger, rooms *Rooms, states store.VoiceStateStore) *Voice {
	return &Voice{
		log:      logger.With().Str("component", "voice").Logger(),
		rooms:    rooms,
		states:   states,
		channels: make(map[RoomKey]map[int64]*Participant),
		servers:  make(map[RoomKey]int64),
	}
}

type voiceRemoval struct {
	room      RoomKey
	conn      *Conn
	serverID  int64
	occupants []int64
}

// Join moves the connection's identity into target, leaving any voice room it
// previously occupied. Rejoining the current room is a full leave and rejoin,
// which resets the mute/deafen flags. When two connections of the same
// identity race joins to different rooms, the last writer wins and exactly
// one participant record survives.
func (v *Voice) Join(ctx context.Context, c *Conn, target RoomKey, serverID int64) {
	if target.Kind != RoomVoice {
		v.log.Debug().Str("room", target.String()).Msg("ignoring voice join for non-voice room")
		return
	}

	v.mu.Lock()
	// Evict every existing record for this identity. There should be at most
	// one, but a transient state with more must still converge to one.
	var removed []voiceRemoval
	for room, parts := range v.channels {
		p, ok := parts[c.Identity]
		if !ok {
			continue
		}
		delete(parts, c.Identity)
		removed = append(removed, voiceRemoval{
			room:      room,
			conn:      p.Conn,
			serverID:  v.servers[room],
			occupants: occupantIDs(parts),
		})
		if len(parts) == 0 {
			delete(v.channels, room)
			delete(v.servers, room)
		}
	}

	parts := v.channels[target]
	if parts == nil {
		parts = make(map[int64]*Participant)
		v.channels[target] = parts
	}
	v.servers[target] = serverID
	parts[c.Identity] = &Participant{Identity: c.Identity, Name: c.Name, Conn: c}

	roster := make([]ParticipantInfo, 0, len(parts)-1)
	occupants := make([]int64, 0, len(parts))
	for id, p := range parts {
		occupants = append(occupants, id)
		if id != c.Identity {
			roster = append(roster, p.info())
		}
	}
	v.mu.Unlock()

	for _, rm := range removed {
		v.rooms.Unsubscribe(rm.conn, rm.room)
		v.rooms.Broadcast(rm.room, &Event{
			Kind:  EventVoiceLeft,
			Voice: &VoiceInfo{Room: rm.room, Identity: c.Identity, Name: c.Name},
		}, nil)
		if err := v.states.DeleteVoiceState(ctx, c.Identity, rm.room.ID); err != nil {
			v.log.Warn().Err(err).Int64("identity", c.Identity).Str("room", rm.room.String()).Msg("delete voice state failed")
		}
		if rm.serverID != 0 {
			v.rooms.Broadcast(ServerRoom(rm.serverID), &Event{
				Kind:      EventVoiceOccupancy,
				Occupancy: &OccupancyInfo{ChannelID: rm.room.ID, Identities: rm.occupants},
			}, nil)
		}
	}

	v.rooms.Subscribe(c, target)

	if err := v.states.UpsertVoiceState(ctx, &store.VoiceState{
		UserID:    c.Identity,
		ChannelID: target.ID,
		ServerID:  serverID,
	}); err != nil {
		v.log.Warn().Err(err).Int64("identity", c.Identity).Str("room", target.String()).Msg("upsert voice state failed")
	}

	v.rooms.Broadcast(target, &Event{
		Kind:  EventVoiceJoined,
		Voice: &VoiceInfo{Room: target, Identity: c.Identity, Name: c.Name},
	}, c)

	// Point-to-point roster reply: how the joiner discovers who to negotiate
	// peer sessions with.
	c.send(&Event{
		Kind:   EventVoiceRoster,
		Roster: &RosterInfo{Room: target, Participants: roster},
	})

	if serverID != 0 {
		v.rooms.Broadcast(ServerRoom(serverID), &Event{
			Kind:      EventVoiceOccupancy,
			Occupancy: &OccupancyInfo{ChannelID: target.ID, Identities: occupants},
		}, nil)
	}
}

// Leave removes the identity's participant record from room. Leaving a room
// the identity never joined is a no-op: nothing is broadcast, no error
// surfaces.
func (v *Voice) Leave(ctx context.Context, c *Conn, room RoomKey) {
	v.mu.Lock()
	parts := v.channels[room]
	p, ok := parts[c.Identity]
	if !ok {
		v.mu.Unlock()
		return
	}
	delete(parts, c.Identity)
	serverID := v.servers[room]
	occupants := occupantIDs(parts)
	if len(parts) == 0 {
		delete(v.channels, room)
		delete(v.servers, room)
	}
	v.mu.Unlock()

	v.finishLeave(ctx, p, room, serverID, occupants)
}

// UpdateState mutates the identity's mute/deafen flags in room. A stale
// update referencing a record that no longer exists is a no-op.
func (v *Voice) UpdateState(ctx context.Context, identity int64, room RoomKey, selfMute, selfDeafen bool) {
	v.mu.Lock()
	p, ok := v.channels[room][identity]
	if !ok {
		v.mu.Unlock()
		return
	}
	p.SelfMute = selfMute
	p.SelfDeafen = selfDeafen
	name := p.Name
	serverID := v.servers[room]
	v.mu.Unlock()

	if err := v.states.UpsertVoiceState(ctx, &store.VoiceState{
		UserID:     identity,
		ChannelID:  room.ID,
		ServerID:   serverID,
		SelfMute:   selfMute,
		SelfDeafen: selfDeafen,
	}); err != nil {
		v.log.Warn().Err(err).Int64("identity", identity).Str("room", room.String()).Msg("upsert voice state failed")
	}

	v.rooms.Broadcast(room, &Event{
		Kind: EventVoiceState,
		Voice: &VoiceInfo{
			Room:       room,
			Identity:   identity,
			Name:       name,
			SelfMute:   selfMute,
			SelfDeafen: selfDeafen,
		},
	}, nil)
}

// DisconnectCleanup removes every participant record held by this specific
// connection. Records the same identity re-established through another
// connection are left untouched.
func (v *Voice) DisconnectCleanup(ctx context.Context, c *Conn) {
	type departure struct {
		p         *Participant
		room      RoomKey
		serverID  int64
		occupants []int64
	}

	v.mu.Lock()
	var gone []departure
	for room, parts := range v.channels {
		p, ok := parts[c.Identity]
		if !ok || p.Conn != c {
			continue
		}
		delete(parts, c.Identity)
		d := departure{p: p, room: room, serverID: v.servers[room], occupants: occupantIDs(parts)}
		if len(parts) == 0 {
			delete(v.channels, room)
			delete(v.servers, room)
		}
		gone = append(gone, d)
	}
	v.mu.Unlock()

	for _, d := range gone {
		v.finishLeave(ctx, d.p, d.room, d.serverID, d.occupants)
	}
}

// ParticipantConn returns the connection recorded for the identity in room,
// or nil when no such participant exists.
func (v *Voice) ParticipantConn(identity int64, room RoomKey) *Conn {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if p, ok := v.channels[room][identity]; ok {
		return p.Conn
	}
	return nil
}

// Occupants returns a snapshot of identities currently in room.
func (v *Voice) Occupants(room RoomKey) []int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return occupantIDs(v.channels[room])
}

func (v *Voice) finishLeave(ctx context.Context, p *Participant, room RoomKey, serverID int64, occupants []int64) {
	v.rooms.Unsubscribe(p.Conn, room)

	if err := v.states.DeleteVoiceState(ctx, p.Identity, room.ID); err != nil {
		v.log.Warn().Err(err).Int64("identity", p.Identity).Str("room", room.String()).Msg("delete voice state failed")
	}

	v.rooms.Broadcast(room, &Event{
		Kind:  EventVoiceLeft,
		Voice: &VoiceInfo{Room: room, Identity: p.Identity, Name: p.Name},
	}, nil)

	if serverID != 0 {
		v.rooms.Broadcast(ServerRoom(serverID), &Event{
			Kind:      EventVoiceOccupancy,
			Occupancy: &OccupancyInfo{ChannelID: room.ID, Identities: occupants},
		}, nil)
	}
}

func occupantIDs(parts map[int64]*Participant) []int64 {
	ids := make([]int64, 0, len(parts))
	for id := range parts {
		ids = append(ids, id)
	}
	return ids
}
