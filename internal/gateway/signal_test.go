package gateway

import (
	"context"
	"encoding/json"
	"testing"
)

func TestSignalRelayedToTargetOnly(t *testing.T) {
	fs := newFakeStore()
	fs.servers[1] = []int64{10}
	fs.servers[2] = []int64{10}
	fs.servers[3] = []int64{10}
	h := newTestHub(fs)
	ctx := context.Background()

	a := connect(t, h, "a", 1, "alice")
	b := connect(t, h, "b", 2, "bob")
	other := connect(t, h, "o", 3, "carol")

	v := VoiceRoom(100)
	h.VoiceJoin(ctx, a, v, 10)
	h.VoiceJoin(ctx, b, v, 10)
	h.VoiceJoin(ctx, other, v, 10)
	for _, c := range []*Conn{a, b, other} {
		countEvents(c.Events, EventSignal)
	}

	payload := json.RawMessage(`{"sdp":"v=0"}`)
	h.Signal(a, 2, v, SignalOffer, payload)

	ev := mustEvent(t, b.Events, EventSignal)
	if ev.Signal.Kind != SignalOffer || ev.Signal.From != 1 {
		t.Fatalf("unexpected signal: %+v", ev.Signal)
	}
	if string(ev.Signal.Payload) != `{"sdp":"v=0"}` {
		t.Fatalf("payload altered: %s", ev.Signal.Payload)
	}
	noEvent(t, a.Events, EventSignal)
	noEvent(t, other.Events, EventSignal)
}

func TestSignalToDepartedParticipantDropped(t *testing.T) {
	fs := newFakeStore()
	fs.servers[1] = []int64{10}
	fs.servers[2] = []int64{10}
	h := newTestHub(fs)
	ctx := context.Background()

	a := connect(t, h, "a", 1, "alice")
	b := connect(t, h, "b", 2, "bob")

	v := VoiceRoom(100)
	h.VoiceJoin(ctx, a, v, 10)
	h.VoiceJoin(ctx, b, v, 10)
	h.VoiceLeave(ctx, b, v)
	countEvents(a.Events, EventSignal)
	countEvents(b.Events, EventSignal)

	h.Signal(a, 2, v, SignalCandidate, json.RawMessage(`{}`))

	// Nobody receives anything and the sender sees no error.
	noEvent(t, a.Events, EventSignal)
	noEvent(t, b.Events, EventSignal)
}

func TestSignalGoesToRecordedConnection(t *testing.T) {
	fs := newFakeStore()
	fs.servers[1] = []int64{10}
	fs.servers[2] = []int64{10}
	h := newTestHub(fs)
	ctx := context.Background()

	a := connect(t, h, "a", 1, "alice")
	// Bob has two connections; only the one that joined voice gets signals.
	b1 := connect(t, h, "b1", 2, "bob")
	b2 := connect(t, h, "b2", 2, "bob")

	v := VoiceRoom(100)
	h.VoiceJoin(ctx, a, v, 10)
	h.VoiceJoin(ctx, b2, v, 10)
	countEvents(b1.Events, EventSignal)
	countEvents(b2.Events, EventSignal)

	h.Signal(a, 2, v, SignalAnswer, json.RawMessage(`{}`))

	mustEvent(t, b2.Events, EventSignal)
	noEvent(t, b1.Events, EventSignal)
}
