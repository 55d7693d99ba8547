package gateway

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/strandchat/gateway/internal/store"
)

// Recovery replays messages a user missed during a disconnection window. The
// caller supplies its own last-seen timestamp; no cursor is persisted.
type Recovery struct {
	log      zerolog.Logger
	members  store.MembershipStore
	messages store.MessageStore
	limit    int
}

// NewRecovery constructs the reconnect catch-up component. limit caps how
// many messages one request may replay.
func NewRecovery(logger *zerolog.Logger, members store.MembershipStore, messages store.MessageStore, limit int) *Recovery {
	if limit <= 0 {
		limit = 200
	}
	return &Recovery{
		log:      logger.With().Str("component", "recovery").Logger(),
		members:  members,
		messages: messages,
		limit:    limit,
	}
}

// Recover resolves the channel rooms the connection's identity currently
// belongs to, fetches messages authored by others after since, and delivers
// them to the requesting connection only, oldest first, as a single batch.
func (r *Recovery) Recover(ctx context.Context, c *Conn, since time.Time) {
	channels, err := r.members.ListChannels(ctx, c.Identity)
	if err != nil {
		r.log.Warn().Err(err).Int64("identity", c.Identity).Msg("list channels failed")
		return
	}
	conversations, err := r.members.ListConversations(ctx, c.Identity)
	if err != nil {
		r.log.Warn().Err(err).Int64("identity", c.Identity).Msg("list conversations failed")
		return
	}

	roomIDs := make([]int64, 0, len(channels)+len(conversations))
	roomIDs = append(roomIDs, channels...)
	roomIDs = append(roomIDs, conversations...)

	msgs := []*store.Message{}
	if len(roomIDs) > 0 {
		msgs, err = r.messages.ListMissedMessages(ctx, roomIDs, c.Identity, since, r.limit)
		if err != nil {
			r.log.Warn().Err(err).Int64("identity", c.Identity).Msg("list missed messages failed")
			return
		}
	}

	c.send(&Event{
		Kind:   EventMissedBatch,
		Missed: &MissedBatch{Messages: msgs},
	})
}
