package gateway

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/strandchat/gateway/internal/bus"
	"github.com/strandchat/gateway/internal/store"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// fakeStore is an in-memory store.Store for hub tests.
type fakeStore struct {
	mu            sync.Mutex
	servers       map[int64][]int64
	channels      map[int64][]int64
	conversations map[int64][]int64
	voice         map[int64]*store.VoiceState
	messages      []*store.Message

	upserts int
	deletes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		servers:       make(map[int64][]int64),
		channels:      make(map[int64][]int64),
		conversations: make(map[int64][]int64),
		voice:         make(map[int64]*store.VoiceState),
	}
}

func (f *fakeStore) ListServers(_ context.Context, userID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.servers[userID]...), nil
}

func (f *fakeStore) ListChannels(_ context.Context, userID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.channels[userID]...), nil
}

func (f *fakeStore) ListConversations(_ context.Context, userID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.conversations[userID]...), nil
}

func (f *fakeStore) UpsertVoiceState(_ context.Context, vs *store.VoiceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	copied := *vs
	f.voice[vs.UserID] = &copied
	return nil
}

func (f *fakeStore) DeleteVoiceState(_ context.Context, userID, channelID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if vs, ok := f.voice[userID]; ok && vs.ChannelID == channelID {
		delete(f.voice, userID)
	}
	return nil
}

func (f *fakeStore) ListVoiceStates(_ context.Context, channelID int64) ([]*store.VoiceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.VoiceState
	for _, vs := range f.voice {
		if vs.ChannelID == channelID {
			copied := *vs
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMissedMessages(_ context.Context, roomIDs []int64, excludeUserID int64, since time.Time, limit int) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rooms := make(map[int64]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		rooms[id] = struct{}{}
	}

	var out []*store.Message
	for _, m := range f.messages {
		if _, ok := rooms[m.ChannelID]; !ok {
			continue
		}
		if m.UserID == excludeUserID || !m.CreatedAt.After(since) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) counts() (upserts, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts, f.deletes
}

func newTestHub(fs *fakeStore) *Hub {
	return NewHub(testLogger(), fs, bus.NewLocal(), 50)
}

func connect(t *testing.T, h *Hub, id string, identity int64, name string) *Conn {
	t.Helper()
	c := NewConn(id, identity, name, 32)
	if _, err := h.Connect(context.Background(), c); err != nil {
		t.Fatalf("connect %s: %v", id, err)
	}
	return c
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
		}
	}
}

// noEvent asserts no buffered event of the given kind. Hub operations are
// synchronous, so anything emitted has already landed in the channel.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			return
		}
	}
}

// countEvents drains the channel and counts buffered events of the kind.
func countEvents(ch <-chan *Event, kind EventKind) int {
	n := 0
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				n++
			}
		default:
			return n
		}
	}
}
