package gateway

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// SignalKind is the class of a peer negotiation payload.
type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

// ParseSignalKind maps a wire string to a SignalKind.
func ParseSignalKind(s string) (SignalKind, bool) {
	switch SignalKind(s) {
	case SignalOffer, SignalAnswer, SignalCandidate:
		return SignalKind(s), true
	}
	return "", false
}

// Relay forwards peer negotiation payloads point-to-point between two
// participants of the same voice room. It is stateless: the voice
// coordinator's participant table is the only lookup. Payloads are never
// inspected.
type Relay struct {
	log   zerolog.Logger
	voice *Voice
}

// NewRelay constructs the signaling relay over the voice coordinator.
func NewRelay(logger *zerolog.Logger, voice *Voice) *Relay {
	return &Relay{
		log:   logger.With().Str("component", "signal").Logger(),
		voice: voice,
	}
}

// Relay delivers payload to the one connection recorded for target in room.
// If the target has no participant record there, the signal is dropped
// silently: signaling is best-effort and superseded by a fresh negotiation on
// the next join.
func (r *Relay) Relay(from *Conn, target int64, room RoomKey, kind SignalKind, payload json.RawMessage) {
	dest := r.voice.ParticipantConn(target, room)
	if dest == nil {
		r.log.Debug().Int64("from", from.Identity).Int64("target", target).Str("room", room.String()).Msg("dropping signal for absent participant")
		return
	}

	dest.send(&Event{
		Kind: EventSignal,
		Signal: &SignalInfo{
			Kind:    kind,
			Room:    room,
			From:    from.Identity,
			Name:    from.Name,
			Payload: payload,
		},
	})
}
