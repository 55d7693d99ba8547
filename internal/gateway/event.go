package gateway

import (
	"encoding/json"

	"github.com/strandchat/gateway/internal/store"
)

// EventKind is a notification the core emits to connections.
type EventKind int

const (
	// EventReady confirms a connection is established and carries its view.
	EventReady EventKind = iota
	// EventPresence notifies server members about a user's status change.
	EventPresence
	// EventTyping notifies a room that a user started typing.
	EventTyping
	// EventVoiceJoined notifies a voice room that a participant joined.
	EventVoiceJoined
	// EventVoiceLeft notifies a voice room that a participant left.
	EventVoiceLeft
	// EventVoiceState notifies a voice room about mute/deafen changes.
	EventVoiceState
	// EventVoiceRoster delivers the current participant list to a joiner.
	EventVoiceRoster
	// EventVoiceOccupancy summarizes voice channel occupancy to a server room.
	EventVoiceOccupancy
	// EventSignal relays a peer negotiation payload between two participants.
	EventSignal
	// EventMissedBatch replays messages missed during a disconnection window.
	EventMissedBatch
	// EventDispatch re-broadcasts a control-plane originated room event.
	EventDispatch
)

// Event is sent to connections to describe what happened in the system.
// Exactly one payload field is set, matching Kind. Events are JSON-encodable
// so room broadcasts can cross the pub/sub backbone unchanged.
type Event struct {
	Kind      EventKind        `json:"kind"`
	Ready     *ReadyInfo       `json:"ready,omitempty"`
	Presence  *PresenceUpdate  `json:"presence,omitempty"`
	Typing    *TypingInfo      `json:"typing,omitempty"`
	Voice     *VoiceInfo       `json:"voice,omitempty"`
	Roster    *RosterInfo      `json:"roster,omitempty"`
	Occupancy *OccupancyInfo   `json:"occupancy,omitempty"`
	Signal    *SignalInfo      `json:"signal,omitempty"`
	Missed    *MissedBatch     `json:"missed,omitempty"`
	Dispatch  *DispatchInfo    `json:"dispatch,omitempty"`
}

// ReadyInfo is the point-to-point reply to a freshly accepted connection.
type ReadyInfo struct {
	Identity int64     `json:"identity"`
	Name     string    `json:"name"`
	Status   Status    `json:"status"`
	Rooms    []RoomKey `json:"rooms"`
}

// PresenceUpdate carries a user's visible status transition.
type PresenceUpdate struct {
	Identity int64  `json:"identity"`
	Status   Status `json:"status"`
	Custom   string `json:"custom,omitempty"`
}

// TypingInfo notifies a room that a user started typing.
type TypingInfo struct {
	Room     RoomKey `json:"room"`
	Identity int64   `json:"identity"`
	Name     string  `json:"name"`
}

// VoiceInfo describes a participant transition in a voice room.
type VoiceInfo struct {
	Room       RoomKey `json:"room"`
	Identity   int64   `json:"identity"`
	Name       string  `json:"name"`
	SelfMute   bool    `json:"self_mute"`
	SelfDeafen bool    `json:"self_deafen"`
}

// ParticipantInfo is one entry of a voice roster.
type ParticipantInfo struct {
	Identity   int64  `json:"identity"`
	Name       string `json:"name"`
	SelfMute   bool   `json:"self_mute"`
	SelfDeafen bool   `json:"self_deafen"`
}

// RosterInfo is the full participant list of a voice room, excluding the
// requesting connection's own record.
type RosterInfo struct {
	Room         RoomKey           `json:"room"`
	Participants []ParticipantInfo `json:"participants"`
}

// OccupancyInfo summarizes who occupies a voice channel, broadcast to the
// enclosing server room so idle members see occupancy without joining.
type OccupancyInfo struct {
	ChannelID  int64   `json:"channel_id"`
	Identities []int64 `json:"identities"`
}

// SignalInfo relays one peer negotiation payload. The payload is opaque to
// the gateway.
type SignalInfo struct {
	Kind    SignalKind      `json:"signal"`
	Room    RoomKey         `json:"room"`
	From    int64           `json:"from"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// MissedBatch replays messages missed while disconnected, oldest first.
type MissedBatch struct {
	Messages []*store.Message `json:"messages"`
}

// DispatchInfo is a control-plane originated event the gateway re-broadcasts
// verbatim to a room.
type DispatchInfo struct {
	Event   string          `json:"event"`
	Room    RoomKey         `json:"room"`
	Payload json.RawMessage `json:"payload"`
}
