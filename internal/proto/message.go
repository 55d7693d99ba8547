package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"
	InboundTypeStatus      = "status"
	InboundTypeTyping      = "typing"
	InboundTypeVoiceJoin   = "voice_join"
	InboundTypeVoiceLeave  = "voice_leave"
	InboundTypeVoiceState  = "voice_state"
	InboundTypeSignal      = "signal"
	InboundTypeRecover     = "recover"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Room identifies a broadcast group on the wire.
type Room struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

// SubscribeData requests subscription to (or from) an on-demand room.
type SubscribeData struct {
	Room Room `json:"room"`
}

// StatusData requests an explicit presence change.
type StatusData struct {
	Status string `json:"status"`
	Custom string `json:"custom,omitempty"`
}

// TypingData announces typing in a room.
type TypingData struct {
	Room Room `json:"room"`
}

// VoiceJoinData requests joining a voice channel. ServerID is the enclosing
// server when known, zero otherwise.
type VoiceJoinData struct {
	Room     Room  `json:"room"`
	ServerID int64 `json:"server_id,omitempty"`
}

// VoiceLeaveData requests leaving a voice channel.
type VoiceLeaveData struct {
	Room Room `json:"room"`
}

// VoiceStateData updates self mute/deafen flags.
type VoiceStateData struct {
	Room       Room `json:"room"`
	SelfMute   bool `json:"self_mute"`
	SelfDeafen bool `json:"self_deafen"`
}

// SignalData carries one peer negotiation payload for another participant of
// the same voice room. Payload is opaque to the server.
type SignalData struct {
	Kind    string          `json:"signal"`
	Room    Room            `json:"room"`
	Target  int64           `json:"target"`
	Payload json.RawMessage `json:"payload"`
}

// RecoverData requests replay of messages missed since the given Unix
// timestamp (milliseconds).
type RecoverData struct {
	SinceMillis int64 `json:"since"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
