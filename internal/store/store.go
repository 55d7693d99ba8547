package store

import (
	"context"
	"time"
)

// VoiceState is the durable record of a user occupying a voice channel.
type VoiceState struct {
	UserID     int64
	ChannelID  int64
	ServerID   int64
	SelfMute   bool
	SelfDeafen bool
	UpdatedAt  time.Time
}

// Message is a persisted chat message as seen by the gateway. The control
// plane owns message writes; the gateway only reads them for reconnect
// catch-up.
type Message struct {
	ID        int64     `json:"id"`
	ChannelID int64     `json:"channel_id"`
	UserID    int64     `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// MembershipStore answers which servers, channels and conversations a user
// belongs to. Consulted at connect time and at recovery time only.
type MembershipStore interface {
	// ListServers returns IDs of servers the user is a persisted member of.
	ListServers(ctx context.Context, userID int64) ([]int64, error)

	// ListChannels returns IDs of text channels across the user's servers.
	ListChannels(ctx context.Context, userID int64) ([]int64, error)

	// ListConversations returns IDs of direct/group conversations the user
	// belongs to.
	ListConversations(ctx context.Context, userID int64) ([]int64, error)
}

// VoiceStateStore persists voice channel occupancy.
type VoiceStateStore interface {
	// UpsertVoiceState writes the user's current voice state, replacing any
	// previous row for the same user.
	UpsertVoiceState(ctx context.Context, vs *VoiceState) error

	// DeleteVoiceState removes the user's voice state for the given channel.
	// Deleting a row that does not exist is not an error.
	DeleteVoiceState(ctx context.Context, userID, channelID int64) error

	// ListVoiceStates returns all voice states for a channel.
	ListVoiceStates(ctx context.Context, channelID int64) ([]*VoiceState, error)
}

// MessageStore reads persisted messages for reconnect catch-up.
type MessageStore interface {
	// ListMissedMessages returns messages in any of the given rooms, authored
	// by someone other than excludeUserID, created strictly after since,
	// oldest first, capped at limit.
	ListMissedMessages(ctx context.Context, roomIDs []int64, excludeUserID int64, since time.Time, limit int) ([]*Message, error)
}

// Store aggregates the persistence interfaces the gateway consumes.
type Store interface {
	MembershipStore
	VoiceStateStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
