package gateway

import (
	"sync"

	"github.com/rs/zerolog"
)

// Status is a user's visible presence.
type Status string

const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusDnd     Status = "dnd"
	StatusOffline Status = "offline"
)

// statusInvisible is request-only: stored and broadcast as offline while the
// session stays alive.
const statusInvisible = "invisible"

// parseStatus maps a requested status to the stored one. Returns false for
// values outside the accepted set; such requests are ignored.
func parseStatus(s string) (Status, bool) {
	switch s {
	case string(StatusOnline), string(StatusIdle), string(StatusDnd):
		return Status(s), true
	case statusInvisible, string(StatusOffline):
		return StatusOffline, true
	}
	return "", false
}

// Presence tracks each user's visible status and broadcasts transitions to
// the server rooms the user is a persisted member of. The server room list is
// captured at connect time so no membership lookups happen on status changes.
type Presence struct {
	log   zerolog.Logger
	rooms *Rooms

	mu      sync.Mutex
	status  map[int64]Status
	custom  map[int64]string
	servers map[int64][]RoomKey
}

// NewPresence constructs the presence tracker publishing through rooms.
func NewPresence(logger *zerolog.Logger, rooms *Rooms) *Presence {
	return &Presence{
		log:     logger.With().Str("component", "presence").Logger(),
		rooms:   rooms,
		status:  make(map[int64]Status),
		custom:  make(map[int64]string),
		servers: make(map[int64][]RoomKey),
	}
}

// HandleConnect records a new connection for the identity. On the first
// connection of a session the user goes online and the transition is
// broadcast.
func (p *Presence) HandleConnect(identity int64, first bool, serverRooms []RoomKey) {
	p.mu.Lock()
	p.servers[identity] = serverRooms
	if !first {
		p.mu.Unlock()
		return
	}
	p.status[identity] = StatusOnline
	custom := p.custom[identity]
	p.mu.Unlock()

	p.broadcast(identity, StatusOnline, custom, serverRooms)
}

// SetStatus applies an explicit status request. Unknown values and requests
// from identities without a live session are dropped silently. Nothing is
// broadcast when neither status nor custom text changed.
func (p *Presence) SetStatus(identity int64, requested, custom string) {
	status, ok := parseStatus(requested)
	if !ok {
		p.log.Debug().Int64("identity", identity).Str("status", requested).Msg("ignoring unknown status")
		return
	}

	p.mu.Lock()
	current, live := p.status[identity]
	if !live {
		p.mu.Unlock()
		return
	}
	if current == status && p.custom[identity] == custom {
		p.mu.Unlock()
		return
	}
	p.status[identity] = status
	p.custom[identity] = custom
	serverRooms := p.servers[identity]
	p.mu.Unlock()

	p.broadcast(identity, status, custom, serverRooms)
}

// HandleDisconnect ends the identity's session when its last connection
// closed. The offline transition is broadcast exactly once.
func (p *Presence) HandleDisconnect(identity int64, last bool) {
	if !last {
		return
	}

	p.mu.Lock()
	if _, live := p.status[identity]; !live {
		p.mu.Unlock()
		return
	}
	delete(p.status, identity)
	delete(p.custom, identity)
	serverRooms := p.servers[identity]
	delete(p.servers, identity)
	p.mu.Unlock()

	p.broadcast(identity, StatusOffline, "", serverRooms)
}

// StatusOf returns the identity's visible status.
func (p *Presence) StatusOf(identity int64) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.status[identity]; ok {
		return s
	}
	return StatusOffline
}

func (p *Presence) broadcast(identity int64, status Status, custom string, serverRooms []RoomKey) {
	ev := &Event{
		Kind: EventPresence,
		Presence: &PresenceUpdate{
			Identity: identity,
			Status:   status,
			Custom:   custom,
		},
	}
	for _, room := range serverRooms {
		p.rooms.Broadcast(room, ev, nil)
	}
}
