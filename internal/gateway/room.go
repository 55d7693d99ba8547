package gateway

import "fmt"

// RoomKind classifies a broadcast group.
type RoomKind string

const (
	RoomServer  RoomKind = "server"
	RoomChannel RoomKind = "channel"
	RoomThread  RoomKind = "thread"
	RoomVoice   RoomKind = "voice"
)

// ParseRoomKind maps a wire string to a RoomKind. Returns false for anything
// outside the accepted set.
func ParseRoomKind(s string) (RoomKind, bool) {
	switch RoomKind(s) {
	case RoomServer, RoomChannel, RoomThread, RoomVoice:
		return RoomKind(s), true
	}
	return "", false
}

// RoomKey names a broadcast group. Subscriber sets are keyed by connection,
// not identity: two connections of the same user subscribe independently.
type RoomKey struct {
	Kind RoomKind `json:"kind"`
	ID   int64    `json:"id"`
}

func (k RoomKey) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}

// ServerRoom is the room every persisted member of a server holds.
func ServerRoom(id int64) RoomKey { return RoomKey{Kind: RoomServer, ID: id} }

// ChannelRoom is the room for a text channel or conversation.
func ChannelRoom(id int64) RoomKey { return RoomKey{Kind: RoomChannel, ID: id} }

// ThreadRoom is the room for an open thread.
func ThreadRoom(id int64) RoomKey { return RoomKey{Kind: RoomThread, ID: id} }

// VoiceRoom is the room for a voice channel.
func VoiceRoom(id int64) RoomKey { return RoomKey{Kind: RoomVoice, ID: id} }
