package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/Wyydra/rendezvous/internal/adapter/driven/persistence/memory"
	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	To    domain.ConnectionID
	Event domain.OutboundEvent
}

// recordingGateway captures every delivery. Connections listed in offline
// behave as if they were not connected.
type recordingGateway struct {
	mu      sync.Mutex
	sent    []delivery
	offline map[domain.ConnectionID]bool
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{offline: make(map[domain.ConnectionID]bool)}
}

func (g *recordingGateway) Send(ctx context.Context, to domain.ConnectionID, event domain.OutboundEvent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.offline[to] {
		return domain.ErrConnectionNotFound
	}
	g.sent = append(g.sent, delivery{To: to, Event: event})
	return nil
}

func (g *recordingGateway) deliveries() []delivery {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]delivery(nil), g.sent...)
}

func (g *recordingGateway) reset() {
	g.mu.Lock()
	g.sent = nil
	g.mu.Unlock()
}

func (g *recordingGateway) to(id domain.ConnectionID) []domain.OutboundEvent {
	var out []domain.OutboundEvent
	for _, d := range g.deliveries() {
		if d.To == id {
			out = append(out, d.Event)
		}
	}
	return out
}

type fixture struct {
	registry *memory.RoomRegistry
	gateway  *recordingGateway
	rooms    *service.RoomService
}

func newFixture(opts ...service.RoomOption) fixture {
	registry := memory.NewRoomRegistry()
	gateway := newRecordingGateway()
	relay := service.NewRelayService(gateway)
	return fixture{
		registry: registry,
		gateway:  gateway,
		rooms:    service.NewRoomService(registry, gateway, relay, opts...),
	}
}

func TestRoomService_CreateRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply := f.rooms.CreateRoom(ctx, "host")
	assert.True(t, reply.Success)
	assert.Equal(t, domain.RoleHost, reply.Role)
	assert.Len(t, reply.RoomID.String(), domain.RoomIDLength)
	assert.Empty(t, reply.Error)

	assert.Empty(t, f.gateway.deliveries(), "a fresh room has nobody to notify")
	assert.Equal(t, service.Stats{Rooms: 1, Participants: 1}, f.rooms.Stats())
}

func TestRoomService_JoinRoom_NotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.rooms.CreateRoom(ctx, "host")

	reply := f.rooms.JoinRoom(ctx, "guest", "ZZZZZZ")
	assert.Equal(t, domain.JoinRoomReply{Success: false, Error: "Room not found or no longer active"}, reply)
	assert.Equal(t, service.Stats{Rooms: 1, Participants: 1}, f.rooms.Stats())
	assert.Empty(t, f.gateway.deliveries())

	reply = f.rooms.JoinRoom(ctx, "guest", "  ")
	assert.False(t, reply.Success)
}

func TestRoomService_JoinRoom_NotifiesOthers(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := f.rooms.CreateRoom(ctx, "host")

	first := f.rooms.JoinRoom(ctx, "a", string(created.RoomID))
	require.True(t, first.Success)
	assert.Equal(t, domain.RoleParticipant, first.Role)
	assert.Equal(t, 2, first.ParticipantCount)

	f.gateway.reset()
	second := f.rooms.JoinRoom(ctx, "b", string(created.RoomID))
	require.True(t, second.Success)
	assert.Equal(t, 3, second.ParticipantCount)

	want := domain.ParticipantJoined{
		Participant:      domain.ParticipantInfo{ID: "b", Role: domain.RoleParticipant},
		ParticipantCount: 3,
		RoomID:           created.RoomID,
	}
	assert.Equal(t, []domain.OutboundEvent{want}, f.gateway.to("host"))
	assert.Equal(t, []domain.OutboundEvent{want}, f.gateway.to("a"))
	assert.Empty(t, f.gateway.to("b"), "the joiner gets a reply, not a broadcast")
}

func TestRoomService_JoinRoom_LowercaseID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := f.rooms.CreateRoom(ctx, "host")

	reply := f.rooms.JoinRoom(ctx, "guest", fmt.Sprintf(" %s ", toLower(created.RoomID)))
	assert.True(t, reply.Success)
	assert.Equal(t, created.RoomID, reply.RoomID)
}

func toLower(id domain.RoomID) string {
	out := []byte(id)
	for i, c := range out {
		if c >= 'A' && c <= 'Z' {
			out[i] = c + ('a' - 'A')
		}
	}
	return string(out)
}

func TestRoomService_JoinRoom_Full(t *testing.T) {
	f := newFixture(service.WithMaxParticipants(2))
	ctx := context.Background()
	created := f.rooms.CreateRoom(ctx, "host")

	require.True(t, f.rooms.JoinRoom(ctx, "a", string(created.RoomID)).Success)
	reply := f.rooms.JoinRoom(ctx, "b", string(created.RoomID))
	assert.Equal(t, domain.JoinRoomReply{Success: false, Error: "Room is full"}, reply)

	// Members re-joining are not turned away by the cap.
	assert.True(t, f.rooms.JoinRoom(ctx, "a", string(created.RoomID)).Success)
	assert.Equal(t, 2, f.rooms.Stats().Participants)
}

func TestRoomService_JoinRoom_Rejoin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := f.rooms.CreateRoom(ctx, "host")
	f.rooms.JoinRoom(ctx, "a", string(created.RoomID))
	f.gateway.reset()

	reply := f.rooms.JoinRoom(ctx, "a", string(created.RoomID))
	assert.True(t, reply.Success)
	assert.Equal(t, 2, reply.ParticipantCount)
	assert.Empty(t, f.gateway.deliveries())
}

func TestRoomService_JoinAnotherRoomLeavesCurrent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first := f.rooms.CreateRoom(ctx, "host1")
	second := f.rooms.CreateRoom(ctx, "host2")
	require.True(t, f.rooms.JoinRoom(ctx, "a", string(first.RoomID)).Success)
	f.gateway.reset()

	reply := f.rooms.JoinRoom(ctx, "a", string(second.RoomID))
	require.True(t, reply.Success)

	assert.Equal(t, []domain.OutboundEvent{domain.ParticipantLeft{
		Participant:      domain.ParticipantInfo{ID: "a", Role: domain.RoleParticipant},
		ParticipantCount: 1,
		RoomID:           first.RoomID,
	}}, f.gateway.to("host1"))
	assert.ElementsMatch(t, []domain.ConnectionID{"host1"}, f.rooms.ParticipantsOf(string(first.RoomID)))
	assert.ElementsMatch(t, []domain.ConnectionID{"host2", "a"}, f.rooms.ParticipantsOf(string(second.RoomID)))
}

func TestRoomService_FailedJoinKeepsCurrentRoom(t *testing.T) {
	f := newFixture(service.WithMaxParticipants(2))
	ctx := context.Background()
	own := f.rooms.CreateRoom(ctx, "host")
	require.True(t, f.rooms.JoinRoom(ctx, "guest", string(own.RoomID)).Success)
	full := f.rooms.CreateRoom(ctx, "host2")
	require.True(t, f.rooms.JoinRoom(ctx, "x", string(full.RoomID)).Success)
	f.gateway.reset()

	reply := f.rooms.JoinRoom(ctx, "host", "ZZZZZZ")
	assert.Equal(t, domain.JoinRoomReply{Success: false, Error: "Room not found or no longer active"}, reply)

	reply = f.rooms.JoinRoom(ctx, "host", string(full.RoomID))
	assert.Equal(t, domain.JoinRoomReply{Success: false, Error: "Room is full"}, reply)

	assert.Empty(t, f.gateway.deliveries(), "a rejected join notifies nobody")
	assert.ElementsMatch(t, []domain.ConnectionID{"host", "guest"}, f.rooms.ParticipantsOf(string(own.RoomID)))
	assert.Equal(t, service.Stats{Rooms: 2, Participants: 4}, f.rooms.Stats())
}

func TestRoomService_HostJoiningElsewhereEndsOwnRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	own := f.rooms.CreateRoom(ctx, "host")
	f.rooms.JoinRoom(ctx, "guest", string(own.RoomID))
	other := f.rooms.CreateRoom(ctx, "host2")
	f.gateway.reset()

	reply := f.rooms.JoinRoom(ctx, "host", string(other.RoomID))
	require.True(t, reply.Success)

	ended := domain.SessionEnded{RoomID: own.RoomID, Message: "Session has been ended"}
	assert.Equal(t, []domain.OutboundEvent{ended}, f.gateway.to("guest"))
	assert.Equal(t, []domain.OutboundEvent{ended}, f.gateway.to("host"))
	assert.Equal(t, []domain.OutboundEvent{domain.ParticipantJoined{
		Participant:      domain.ParticipantInfo{ID: "host", Role: domain.RoleParticipant},
		ParticipantCount: 2,
		RoomID:           other.RoomID,
	}}, f.gateway.to("host2"))
	assert.Equal(t, service.Stats{Rooms: 1, Participants: 2}, f.rooms.Stats())
}

func TestRoomService_HostCreatingAgainEndsOldRoom(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first := f.rooms.CreateRoom(ctx, "host")
	f.rooms.JoinRoom(ctx, "a", string(first.RoomID))
	f.gateway.reset()

	second := f.rooms.CreateRoom(ctx, "host")
	require.True(t, second.Success)
	assert.NotEqual(t, first.RoomID, second.RoomID)

	ended := domain.SessionEnded{RoomID: first.RoomID, Message: "Session has been ended"}
	assert.Equal(t, []domain.OutboundEvent{ended}, f.gateway.to("a"))
	assert.Equal(t, service.Stats{Rooms: 1, Participants: 1}, f.rooms.Stats())
}

func TestRoomService_HostLeavesEndsSessionForEveryone(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := f.rooms.CreateRoom(ctx, "host")
	f.rooms.JoinRoom(ctx, "a", string(created.RoomID))
	f.rooms.JoinRoom(ctx, "b", string(created.RoomID))
	f.gateway.reset()

	f.rooms.LeaveRoom(ctx, "host", string(created.RoomID))

	ended := domain.SessionEnded{RoomID: created.RoomID, Message: "Session has been ended"}
	for _, id := range []domain.ConnectionID{"host", "a", "b"} {
		assert.Equal(t, []domain.OutboundEvent{ended}, f.gateway.to(id), "connection %s", id)
	}
	assert.Equal(t, 0, f.rooms.Stats().Rooms)
	assert.Equal(t, 0, f.rooms.Stats().Participants)
}

func TestRoomService_ParticipantDisconnect(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := f.rooms.CreateRoom(ctx, "host")
	f.rooms.JoinRoom(ctx, "a", string(created.RoomID))
	f.gateway.reset()

	reply, expectsReply := f.rooms.Handle(ctx, "a", domain.Disconnected{})
	assert.Nil(t, reply)
	assert.False(t, expectsReply)

	assert.Equal(t, []domain.OutboundEvent{domain.ParticipantLeft{
		Participant:      domain.ParticipantInfo{ID: "a", Role: domain.RoleParticipant},
		ParticipantCount: 1,
		RoomID:           created.RoomID,
	}}, f.gateway.to("host"))
	assert.Empty(t, f.gateway.to("a"))

	_, ok := f.registry.Lookup(created.RoomID)
	assert.True(t, ok)
	assert.Equal(t, service.Stats{Rooms: 1, Participants: 1}, f.rooms.Stats())
}

func TestRoomService_DisconnectWithoutRoom(t *testing.T) {
	f := newFixture()
	f.rooms.Disconnect(context.Background(), "stranger")
	assert.Empty(t, f.gateway.deliveries())
}

func TestRoomService_LeaveWrongRoomIgnored(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := f.rooms.CreateRoom(ctx, "host")
	f.rooms.JoinRoom(ctx, "a", string(created.RoomID))
	f.gateway.reset()

	f.rooms.LeaveRoom(ctx, "a", "OTHER1")
	assert.Empty(t, f.gateway.deliveries())
	assert.Equal(t, 2, f.rooms.Stats().Participants)
}

func TestRoomService_EndSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := f.rooms.CreateRoom(ctx, "host")
	f.rooms.JoinRoom(ctx, "a", string(created.RoomID))
	f.gateway.reset()

	err := f.rooms.EndSession(ctx, "a", string(created.RoomID))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, f.gateway.deliveries())
	assert.Equal(t, 1, f.rooms.Stats().Rooms)

	err = f.rooms.EndSession(ctx, "outsider", string(created.RoomID))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, f.rooms.EndSession(ctx, "host", string(created.RoomID)))
	ended := domain.SessionEnded{RoomID: created.RoomID, Message: "Session has been ended"}
	assert.Equal(t, []domain.OutboundEvent{ended}, f.gateway.to("host"))
	assert.Equal(t, []domain.OutboundEvent{ended}, f.gateway.to("a"))
	assert.Equal(t, service.Stats{}, f.rooms.Stats())

	f.gateway.reset()
	assert.ErrorIs(t, f.rooms.EndSession(ctx, "host", string(created.RoomID)), domain.ErrRoomNotFound)
	assert.Empty(t, f.gateway.deliveries())
}

func TestRoomService_BroadcastSkipsOfflineConnections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	created := f.rooms.CreateRoom(ctx, "host")
	f.rooms.JoinRoom(ctx, "a", string(created.RoomID))
	f.rooms.JoinRoom(ctx, "b", string(created.RoomID))
	f.gateway.offline["a"] = true
	f.gateway.reset()

	f.rooms.Disconnect(ctx, "host")

	assert.Len(t, f.gateway.to("b"), 1)
	assert.Empty(t, f.gateway.to("a"))
	assert.Equal(t, 0, f.rooms.Stats().Rooms)
}

func TestRoomService_HandleDispatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	reply, ok := f.rooms.Handle(ctx, "host", domain.CreateRoomRequest{})
	require.True(t, ok)
	created, isCreate := reply.(domain.CreateRoomReply)
	require.True(t, isCreate)
	require.True(t, created.Success)

	reply, ok = f.rooms.Handle(ctx, "a", domain.JoinRoomRequest{RoomID: string(created.RoomID)})
	require.True(t, ok)
	joined, isJoin := reply.(domain.JoinRoomReply)
	require.True(t, isJoin)
	assert.Equal(t, 2, joined.ParticipantCount)

	f.gateway.reset()
	_, ok = f.rooms.Handle(ctx, "a", domain.SignalRequest{
		Kind:   domain.SignalOffer,
		Target: "host",
		Data:   json.RawMessage(`{"target":"host","sdp":"v=0"}`),
	})
	assert.False(t, ok)
	require.Len(t, f.gateway.to("host"), 1)

	_, ok = f.rooms.Handle(ctx, "host", domain.EndSessionRequest{RoomID: string(created.RoomID)})
	assert.False(t, ok)
	assert.Equal(t, 0, f.rooms.Stats().Rooms)
}
