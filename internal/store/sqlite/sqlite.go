package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/strandchat/gateway/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS server_members (
	user_id   INTEGER NOT NULL,
	server_id INTEGER NOT NULL,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, server_id)
);

CREATE TABLE IF NOT EXISTS server_channels (
	channel_id INTEGER PRIMARY KEY,
	server_id  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS conversation_members (
	user_id         INTEGER NOT NULL,
	conversation_id INTEGER NOT NULL,
	PRIMARY KEY (user_id, conversation_id)
);

CREATE TABLE IF NOT EXISTS voice_states (
	user_id     INTEGER PRIMARY KEY,
	channel_id  INTEGER NOT NULL,
	server_id   INTEGER NOT NULL,
	self_mute   BOOLEAN NOT NULL DEFAULT 0,
	self_deafen BOOLEAN NOT NULL DEFAULT 0,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id INTEGER NOT NULL,
	user_id    INTEGER NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_channel_created
	ON messages (channel_id, created_at);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function after the
// schema is applied. Useful for tests to seed fixture rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== MembershipStore implementation ====

// ListServers returns IDs of servers the user is a persisted member of.
func (s *SQLiteStore) ListServers(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT server_id FROM server_members WHERE user_id = ? ORDER BY server_id`
	return s.listIDs(ctx, query, userID)
}

// ListChannels returns IDs of text channels across the user's servers.
func (s *SQLiteStore) ListChannels(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT c.channel_id
		FROM server_channels c
		JOIN server_members m ON m.server_id = c.server_id
		WHERE m.user_id = ?
		ORDER BY c.channel_id
	`
	return s.listIDs(ctx, query, userID)
}

// ListConversations returns IDs of direct/group conversations the user belongs to.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID int64) ([]int64, error) {
	query := `SELECT conversation_id FROM conversation_members WHERE user_id = ? ORDER BY conversation_id`
	return s.listIDs(ctx, query, userID)
}

func (s *SQLiteStore) listIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ==== VoiceStateStore implementation ====

// UpsertVoiceState writes the user's current voice state, replacing any
// previous row for the same user.
func (s *SQLiteStore) UpsertVoiceState(ctx context.Context, vs *store.VoiceState) error {
	query := `
		INSERT INTO voice_states (user_id, channel_id, server_id, self_mute, self_deafen, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			server_id = excluded.server_id,
			self_mute = excluded.self_mute,
			self_deafen = excluded.self_deafen,
			updated_at = excluded.updated_at
	`
	updatedAt := vs.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, query, vs.UserID, vs.ChannelID, vs.ServerID, vs.SelfMute, vs.SelfDeafen, updatedAt); err != nil {
		return fmt.Errorf("upsert voice state: %w", err)
	}
	return nil
}

// DeleteVoiceState removes the user's voice state for the given channel.
func (s *SQLiteStore) DeleteVoiceState(ctx context.Context, userID, channelID int64) error {
	query := `DELETE FROM voice_states WHERE user_id = ? AND channel_id = ?`
	if _, err := s.db.ExecContext(ctx, query, userID, channelID); err != nil {
		return fmt.Errorf("delete voice state: %w", err)
	}
	return nil
}

// ListVoiceStates returns all voice states for a channel.
func (s *SQLiteStore) ListVoiceStates(ctx context.Context, channelID int64) ([]*store.VoiceState, error) {
	query := `
		SELECT user_id, channel_id, server_id, self_mute, self_deafen, updated_at
		FROM voice_states
		WHERE channel_id = ?
		ORDER BY user_id
	`
	rows, err := s.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list voice states: %w", err)
	}
	defer rows.Close()

	var states []*store.VoiceState
	for rows.Next() {
		vs := &store.VoiceState{}
		if err := rows.Scan(&vs.UserID, &vs.ChannelID, &vs.ServerID, &vs.SelfMute, &vs.SelfDeafen, &vs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan voice state: %w", err)
		}
		states = append(states, vs)
	}
	return states, rows.Err()
}

// ==== MessageStore implementation ====

// ListMissedMessages returns messages in any of the given rooms, authored by
// someone other than excludeUserID, created strictly after since, oldest
// first, capped at limit.
func (s *SQLiteStore) ListMissedMessages(ctx context.Context, roomIDs []int64, excludeUserID int64, since time.Time, limit int) ([]*store.Message, error) {
	if len(roomIDs) == 0 || limit <= 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(roomIDs)-1) + "?"
	query := fmt.Sprintf(`
		SELECT id, channel_id, user_id, body, created_at
		FROM messages
		WHERE channel_id IN (%s) AND user_id != ? AND created_at > ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, placeholders)

	args := make([]any, 0, len(roomIDs)+3)
	for _, id := range roomIDs {
		args = append(args, id)
	}
	args = append(args, excludeUserID, since, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list missed messages: %w", err)
	}
	defer rows.Close()

	var msgs []*store.Message
	for rows.Next() {
		m := &store.Message{}
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.UserID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
