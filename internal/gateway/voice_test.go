package gateway

import (
	"context"
	"testing"
)

func TestVoiceJoinDeliversRosterAndBroadcasts(t *testing.T) {
	fs := newFakeStore()
	fs.servers[1] = []int64{10}
	fs.servers[2] = []int64{10}
	h := newTestHub(fs)
	ctx := context.Background()

	a := connect(t, h, "a", 1, "alice")
	b := connect(t, h, "b", 2, "bob")

	v := VoiceRoom(100)
	h.VoiceJoin(ctx, a, v, 10)

	// First joiner sees an empty roster.
	roster := mustEvent(t, a.Events, EventVoiceRoster)
	if len(roster.Roster.Participants) != 0 {
		t.Fatalf("expected empty roster, got %+v", roster.Roster.Participants)
	}

	h.VoiceJoin(ctx, b, v, 10)

	// Existing participant sees the join; the joiner does not get an echo.
	joined := mustEvent(t, a.Events, EventVoiceJoined)
	if joined.Voice.Identity != 2 {
		t.Fatalf("unexpected joined identity: %d", joined.Voice.Identity)
	}
	noEvent(t, b.Events, EventVoiceJoined)

	// The joiner's roster names the existing participant only.
	roster = mustEvent(t, b.Events, EventVoiceRoster)
	if len(roster.Roster.Participants) != 1 || roster.Roster.Participants[0].Identity != 1 {
		t.Fatalf("unexpected roster: %+v", roster.Roster.Participants)
	}

	if ups, _ := fs.counts(); ups != 2 {
		t.Fatalf("expected 2 voice state upserts, got %d", ups)
	}
}

func TestVoiceSingleRoomInvariantOnRapidSwitch(t *testing.T) {
	fs := newFakeStore()
	fs.servers[1] = []int64{10}
	h := newTestHub(fs)
	ctx := context.Background()

	a := connect(t, h, "a", 1, "alice")

	roomA := VoiceRoom(100)
	roomB := VoiceRoom(200)
	h.VoiceJoin(ctx, a, roomA, 10)
	h.VoiceJoin(ctx, a, roomB, 10)

	if occ := h.voice.Occupants(roomA); len(occ) != 0 {
		t.Fatalf("room A still holds participants: %v", occ)
	}
	occ := h.voice.Occupants(roomB)
	if len(occ) != 1 || occ[0] != 1 {
		t.Fatalf("room B occupancy wrong: %v", occ)
	}
}

func TestVoiceSwitchAcrossConnections(t *testing.T) {
	fs := newFakeStore()
	fs.servers[1] = []int64{10}
	fs.servers[2] = []int64{10}
	h := newTestHub(fs)
	ctx := context.Background()

	// Observer subscribed to both voice rooms via membership in the server;
	// voice room events go to voice room subscribers, so use a participant.
	observer := connect(t, h, "o", 2, "observer")
	v1 := VoiceRoom(100)
	v2 := VoiceRoom(200)
	h.VoiceJoin(ctx, observer, v1, 10)
	countEvents(observer.Events, EventVoiceRoster)

	// Identity 1 joins V1 from connection A, then V2 from connection B.
	a := connect(t, h, "a", 1, "alice")
	b := connect(t, h, "b", 1, "alice")
	h.VoiceJoin(ctx, a, v1, 10)
	h.VoiceJoin(ctx, b, v2, 10)

	if occ := h.voice.Occupants(v1); len(occ) != 1 || occ[0] != 2 {
		t.Fatalf("V1 should hold only the observer, got %v", occ)
	}
	occ := h.voice.Occupants(v2)
	if len(occ) != 1 || occ[0] != 1 {
		t.Fatalf("V2 occupancy wrong: %v", occ)
	}
	if h.voice.ParticipantConn(1, v2) != b {
		t.Fatal("V2 participant record must point at connection B")
	}

	// Observer in V1 saw exactly one join and one leave for identity 1.
	if n := countEvents(observer.Events, EventVoiceJoined); n != 1 {
		t.Fatalf("observer saw %d joins, want 1", n)
	}
	if n := countEvents(observer.Events, EventVoiceLeft); n != 1 {
		t.Fatalf("observer saw %d leaves, want 1", n)
	}

	// Disconnecting the stale connection A must not disturb B's record.
	h.Disconnect(ctx, a)
	if occ := h.voice.Occupants(v2); len(occ) != 1 {
		t.Fatalf("V2 lost its participant after stale disconnect: %v", occ)
	}
}

func TestVoiceLeaveUnknownRoomIsNoop(t *testing.T) {
	fs := newFakeStore()
	fs.servers[1] = []int64{10}
	fs.servers[2] = []int64{10}
	h := newTestHub(fs)
	ctx := context.Background()

	a := connect(t, h, "a", 1, "alice")
	b := connect(t, h, "b", 2, "bob")
	v := VoiceRoom(100)
	h.VoiceJoin(ctx, b, v, 10)
	countEvents(b.Events, EventVoiceRoster)

	h.VoiceLeave(ctx, a, v)

	noEvent(t, b.Events, EventVoiceLeft)
	if _, dels := fs.counts(); dels != 0 {
		t.Fatalf("leave of never-joined room deleted %d voice states", dels)
	}
}

func TestVoiceDisconnectRemovesEmptyRoom(t *testing.T) {
	fs := newFakeStore()
	fs.servers[1] = []int64{10}
	h := newTestHub(fs)
	ctx := context.Background()

	a := connect(t, h, "a", 1, "alice")
	v := VoiceRoom(100)
	h.VoiceJoin(ctx, a, v, 10)

	h.Disconnect(ctx, a)

	h.voice.mu.RLock()
	_, roomExists := h.voice.channels[v]
	_, serverTracked := h.voice.servers[v]
	h.voice.mu.RUnlock()
	if roomExists || serverTracked {
		t.Fatal("empty voice room leaked after sole participant disconnected")
	}
}

func TestVoiceRejoinSameRoomResetsFlags(t *testing.T) {
	fs := newFakeStore()
	fs.servers[1] = []int64{10}
	h := newTestHub(fs)
	ctx := context.Background()

	a := connect(t, h, "a", 1, "alice")
	v := VoiceRoom(100)
	h.VoiceJoin(ctx, a, v, 10)
	h.VoiceState(ctx, a, v, true, true)

	// Rejoining the same room is a full leave+rejoin: flags reset.
	h.VoiceJoin(ctx, a, v, 10)

	h.voice.mu.RLock()
	p := h.voice.channels[v][1]
	h.voice.mu.RUnlock()
	if p == nil {
		t.Fatal("participant record missing after rejoin")
	}
	if p.SelfMute || p.SelfDeafen {
		t.Fatalf("rejoin must reset flags, got mute=%v deafen=%v", p.SelfMute, p.SelfDeafen)
	}
}

func TestVoiceStateUpdateAndStaleNoop(t *testing.T) {
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
	countEvents(a.Events, EventVoiceState)

	h.VoiceState(ctx, b, v, true, false)

	ev := mustEvent(t, a.Events, EventVoiceState)
	if ev.Voice.Identity != 2 || !ev.Voice.SelfMute || ev.Voice.SelfDeafen {
		t.Fatalf("unexpected state event: %+v", ev.Voice)
	}

	// A state update after leaving must be a no-op.
	h.VoiceLeave(ctx, b, v)
	countEvents(a.Events, EventVoiceState)
	h.VoiceState(ctx, b, v, false, true)
	noEvent(t, a.Events, EventVoiceState)
}

func TestVoiceOccupancySummaryReachesServerRoom(t *testing.T) {
	fs := newFakeStore()
	fs.servers[1] = []int64{10}
	fs.servers[2] = []int64{10}
	h := newTestHub(fs)
	ctx := context.Background()

	// Idle member of the server, never joins voice.
	idle := connect(t, h, "i", 2, "idle")
	countEvents(idle.Events, EventPresence)

	a := connect(t, h, "a", 1, "alice")
	v := VoiceRoom(100)
	h.VoiceJoin(ctx, a, v, 10)

	ev := mustEvent(t, idle.Events, EventVoiceOccupancy)
	if ev.Occupancy.ChannelID != 100 || len(ev.Occupancy.Identities) != 1 || ev.Occupancy.Identities[0] != 1 {
		t.Fatalf("unexpected occupancy: %+v", ev.Occupancy)
	}

	h.VoiceLeave(ctx, a, v)
	ev = mustEvent(t, idle.Events, EventVoiceOccupancy)
	if len(ev.Occupancy.Identities) != 0 {
		t.Fatalf("expected empty occupancy after leave, got %+v", ev.Occupancy)
	}
}
