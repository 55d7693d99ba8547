package gateway

import (
	"context"
	"encoding/json"
	"testing"
)

func TestHubConnectSubscribesPersistedRooms(t *testing.T) {
	fs := newFakeStore()
	fs.servers[1] = []int64{10, 11}
	fs.conversations[1] = []int64{30}
	h := newTestHub(fs)

	c := NewConn("a", 1, "alice", 32)
	ready, err := h.Connect(context.Background(), c)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if ready.Identity != 1 || ready.Status != StatusOnline {
		t.Fatalf("unexpected ready info: %+v", ready)
	}
	if len(ready.Rooms) != 3 {
		t.Fatalf("expected 3 rooms, got %v", ready.Rooms)
	}

	held := h.rooms.RoomsOf(c)
	if len(held) != 3 {
		t.Fatalf("expected 3 subscriptions, got %v", held)
	}
}

func TestHubTypingExcludesSender(t *testing.T) {
	fs := newFakeStore()
	fs.conversations[1] = []int64{30}
	fs.conversations[2] = []int64{30}
	h := newTestHub(fs)

	a := connect(t, h, "a", 1, "alice")
	b := connect(t, h, "b", 2, "bob")

	h.Typing(a, ChannelRoom(30))

	ev := mustEvent(t, b.Events, EventTyping)
	if ev.Typing.Identity != 1 || ev.Typing.Name != "alice" {
		t.Fatalf("unexpected typing event: %+v", ev.Typing)
	}
	noEvent(t, a.Events, EventTyping)
}

func TestHubOnDemandSubscription(t *testing.T) {
	fs := newFakeStore()
	h := newTestHub(fs)

	a := connect(t, h, "a", 1, "alice")
	b := connect(t, h, "b", 2, "bob")

	room := ThreadRoom(55)
	h.Subscribe(a, room)
	h.Subscribe(b, room)

	h.Typing(b, room)
	mustEvent(t, a.Events, EventTyping)

	h.Unsubscribe(a, room)
	h.Typing(b, room)
	noEvent(t, a.Events, EventTyping)
}

func TestHubSubscribeRejectsManagedKinds(t *testing.T) {
	fs := newFakeStore()
	h := newTestHub(fs)

	a := connect(t, h, "a", 1, "alice")
	h.Subscribe(a, ServerRoom(10))
	h.Subscribe(a, VoiceRoom(100))

	if held := h.rooms.RoomsOf(a); len(held) != 0 {
		t.Fatalf("server/voice rooms must not be on-demand subscribable: %v", held)
	}
}

func TestHubDispatchPassThrough(t *testing.T) {
	fs := newFakeStore()
	fs.conversations[1] = []int64{30}
	h := newTestHub(fs)

	a := connect(t, h, "a", 1, "alice")

	payload := json.RawMessage(`{"id":42,"body":"hello"}`)
	h.DispatchRoomEvent(ChannelRoom(30), "message_created", payload)

	ev := mustEvent(t, a.Events, EventDispatch)
	if ev.Dispatch.Event != "message_created" {
		t.Fatalf("unexpected dispatch event: %+v", ev.Dispatch)
	}
	if string(ev.Dispatch.Payload) != `{"id":42,"body":"hello"}` {
		t.Fatalf("payload altered: %s", ev.Dispatch.Payload)
	}
}
