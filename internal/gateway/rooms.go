package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/strandchat/gateway/internal/bus"
)

// broadcastTopic carries every room broadcast across the pub/sub backbone.
const broadcastTopic = "gateway.broadcast"

// busEnvelope wraps a room event for transit between gateway processes.
type busEnvelope struct {
	Origin string  `json:"origin"`
	Room   RoomKey `json:"room"`
	Event  *Event  `json:"event"`
}

// Rooms maps room keys to the set of local connections subscribed to them and
// fans events out to those sets. Broadcasts additionally ride the bus so
// subscribers on other gateway processes receive them; the in-memory maps are
// authoritative for local connections only.
type Rooms struct {
	log    zerolog.Logger
	bus    bus.Bus
	origin string

	mu     sync.RWMutex
	subs   map[RoomKey]map[*Conn]struct{}
	byConn map[*Conn]map[RoomKey]struct{}
}

// NewRooms constructs the room membership manager on the given bus.
func NewRooms(logger *zerolog.Logger, b bus.Bus) *Rooms {
	return &Rooms{
		log:    logger.With().Str("component", "rooms").Logger(),
		bus:    b,
		origin: uuid.NewString(),
		subs:   make(map[RoomKey]map[*Conn]struct{}),
		byConn: make(map[*Conn]map[RoomKey]struct{}),
	}
}

// Start subscribes to the broadcast topic so events published by other
// gateway processes reach local subscribers. The subscription lives until the
// context is cancelled.
func (r *Rooms) Start(ctx context.Context) error {
	_, err := r.bus.Subscribe(ctx, broadcastTopic, func(_ string, payload []byte) {
		var env busEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			r.log.Warn().Err(err).Msg("malformed bus envelope")
			return
		}
		if env.Origin == r.origin || env.Event == nil {
			return
		}
		r.deliver(env.Room, env.Event, nil)
	})
	return err
}

// Subscribe adds the connection to the room's subscriber set.
func (r *Rooms) Subscribe(c *Conn, room RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.subs[room]
	if set == nil {
		set = make(map[*Conn]struct{})
		r.subs[room] = set
	}
	set[c] = struct{}{}

	held := r.byConn[c]
	if held == nil {
		held = make(map[RoomKey]struct{})
		r.byConn[c] = held
	}
	held[room] = struct{}{}
}

// Unsubscribe removes the connection from the room's subscriber set.
func (r *Rooms) Unsubscribe(c *Conn, room RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(c, room)
}

func (r *Rooms) unsubscribeLocked(c *Conn, room RoomKey) {
	if set, ok := r.subs[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.subs, room)
		}
	}
	if held, ok := r.byConn[c]; ok {
		delete(held, room)
		if len(held) == 0 {
			delete(r.byConn, c)
		}
	}
}

// DropConn removes the connection from every room it holds. Cost is
// proportional to the rooms the connection subscribed to.
func (r *Rooms) DropConn(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.byConn[c] {
		if set, ok := r.subs[room]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(r.subs, room)
			}
		}
	}
	delete(r.byConn, c)
}

// RoomsOf returns a snapshot of the rooms the connection currently holds.
func (r *Rooms) RoomsOf(c *Conn) []RoomKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	held := r.byConn[c]
	if len(held) == 0 {
		return nil
	}
	out := make([]RoomKey, 0, len(held))
	for room := range held {
		out = append(out, room)
	}
	return out
}

// Broadcast fans the event out to every local subscriber of the room except
// exclude, and publishes it on the bus for other processes. The subscriber
// set is snapshotted before delivery: a concurrent unsubscribe does not
// affect a fan-out already underway.
func (r *Rooms) Broadcast(room RoomKey, ev *Event, exclude *Conn) {
	r.deliver(room, ev, exclude)
	r.publish(room, ev)
}

func (r *Rooms) deliver(room RoomKey, ev *Event, exclude *Conn) {
	r.mu.RLock()
	set := r.subs[room]
	targets := make([]*Conn, 0, len(set))
	for c := range set {
		if c == exclude {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if !c.send(ev) {
			r.log.Debug().Str("conn_id", c.ID).Str("room", room.String()).Msg("dropped event for slow consumer")
		}
	}
}

func (r *Rooms) publish(room RoomKey, ev *Event) {
	payload, err := json.Marshal(busEnvelope{Origin: r.origin, Room: room, Event: ev})
	if err != nil {
		r.log.Warn().Err(err).Msg("encode bus envelope")
		return
	}
	if err := r.bus.Publish(context.Background(), broadcastTopic, payload); err != nil {
		r.log.Warn().Err(err).Str("room", room.String()).Msg("bus publish failed")
	}
}
