package service

import (
	"context"
	"errors"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/port"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RoomService binds connection events to the registry: it runs the registry
// operation first and only then notifies the affected connections, so no
// delivery ever happens while registry state is locked.
type RoomService struct {
	registry port.RoomRegistry
	gateway  port.RealTimeGateway
	relay    *RelayService

	maxParticipants int
}

type RoomOption func(*RoomService)

// WithMaxParticipants caps room size. Zero or less means unlimited.
func WithMaxParticipants(n int) RoomOption {
	return func(s *RoomService) { s.maxParticipants = n }
}

func NewRoomService(registry port.RoomRegistry, gateway port.RealTimeGateway, relay *RelayService, opts ...RoomOption) *RoomService {
	s := &RoomService{
		registry: registry,
		gateway:  gateway,
		relay:    relay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle dispatches one inbound event. The bool reports whether the event
// expects a reply; only create-room and join-room do.
func (s *RoomService) Handle(ctx context.Context, conn domain.ConnectionID, event domain.InboundEvent) (domain.Reply, bool) {
	switch e := event.(type) {
	case domain.CreateRoomRequest:
		return s.CreateRoom(ctx, conn), true
	case domain.JoinRoomRequest:
		return s.JoinRoom(ctx, conn, e.RoomID), true
	case domain.SignalRequest:
		_ = s.relay.Relay(ctx, conn, e)
	case domain.LeaveRoomRequest:
		s.LeaveRoom(ctx, conn, e.RoomID)
	case domain.EndSessionRequest:
		_ = s.EndSession(ctx, conn, e.RoomID)
	case domain.Disconnected:
		s.Disconnect(ctx, conn)
	default:
		log.Warn().Str("conn_id", conn.String()).Str("event", event.EventName()).Msg("Unhandled event")
	}
	return nil, false
}

func (s *RoomService) CreateRoom(ctx context.Context, conn domain.ConnectionID) domain.CreateRoomReply {
	if _, ok := s.registry.RoomOf(conn); ok {
		s.leave(ctx, conn)
	}

	roomID, err := s.registry.CreateRoom(conn)
	if err != nil {
		log.Error().Err(err).Str("conn_id", conn.String()).Msg("Error creating room")
		return domain.CreateRoomReply{Success: false, Error: domain.MsgCreateRoomFailed}
	}

	log.Info().Str("room_id", roomID.String()).Str("conn_id", conn.String()).Msg("Room created")
	return domain.CreateRoomReply{
		Success: true,
		RoomID:  roomID,
		Role:    domain.RoleHost,
	}
}

func (s *RoomService) JoinRoom(ctx context.Context, conn domain.ConnectionID, rawRoomID string) domain.JoinRoomReply {
	roomID := domain.ParseRoomID(rawRoomID)
	l := log.With().Str("room_id", roomID.String()).Str("conn_id", conn.String()).Logger()

	fail := func(err error) domain.JoinRoomReply {
		l.Warn().Err(err).Msg("Join rejected")
		return domain.JoinRoomReply{Success: false, Error: domain.ErrorMessage(err)}
	}

	if roomID == "" {
		return fail(domain.ErrRoomNotFound)
	}

	res, err := s.registry.JoinRoom(roomID, conn, s.maxParticipants)
	if err != nil {
		return fail(err)
	}

	if res.Left != nil {
		s.notifyRemoval(ctx, conn, *res.Left)
	}

	if !res.AlreadyMember {
		l.Info().Int("participants", res.ParticipantCount).Msg("Participant joined room")
		s.broadcast(ctx, res.Peers, domain.ParticipantJoined{
			Participant:      domain.ParticipantInfo{ID: conn, Role: res.Role},
			ParticipantCount: res.ParticipantCount,
			RoomID:           res.RoomID,
		})
	}

	return domain.JoinRoomReply{
		Success:          true,
		RoomID:           res.RoomID,
		Role:             res.Role,
		ParticipantCount: res.ParticipantCount,
	}
}

// LeaveRoom ignores requests naming a room the connection is not in.
func (s *RoomService) LeaveRoom(ctx context.Context, conn domain.ConnectionID, rawRoomID string) {
	roomID := domain.ParseRoomID(rawRoomID)
	current, ok := s.registry.RoomOf(conn)
	if !ok || current != roomID {
		log.Debug().Str("room_id", roomID.String()).Str("conn_id", conn.String()).Msg("Leave for a room the connection is not in")
		return
	}
	s.leave(ctx, conn)
}

// EndSession tears the room down on behalf of its host. Anyone else gets
// domain.ErrUnauthorized and no reply on the wire.
func (s *RoomService) EndSession(ctx context.Context, conn domain.ConnectionID, rawRoomID string) error {
	roomID := domain.ParseRoomID(rawRoomID)
	l := log.With().Str("room_id", roomID.String()).Str("conn_id", conn.String()).Logger()

	removed, err := s.registry.TeardownIfHost(roomID, conn)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		l.Warn().Msg("End session for unknown room")
		return err
	case errors.Is(err, domain.ErrUnauthorized):
		l.Warn().Msg("Non-host attempted to end session")
		return err
	case err != nil:
		return err
	}

	l.Info().Int("participants", len(removed)).Msg("Host ended session")
	s.broadcast(ctx, removed, domain.SessionEnded{RoomID: roomID, Message: domain.MsgSessionEnded})
	return nil
}

// Disconnect runs the leave path for whatever room the connection is in.
func (s *RoomService) Disconnect(ctx context.Context, conn domain.ConnectionID) {
	s.leave(ctx, conn)
}

func (s *RoomService) leave(ctx context.Context, conn domain.ConnectionID) {
	res, ok := s.registry.RemoveParticipant(conn)
	if !ok {
		return
	}
	s.notifyRemoval(ctx, conn, res)
}

func (s *RoomService) notifyRemoval(ctx context.Context, conn domain.ConnectionID, res domain.RemovalResult) {
	l := log.With().Str("room_id", res.RoomID.String()).Str("conn_id", conn.String()).Str("role", string(res.RemovedRole)).Logger()

	if res.TornDown {
		l.Info().Int("participants", len(res.Notify)).Msg("Room ended and cleaned up")
		s.broadcast(ctx, res.Notify, domain.SessionEnded{RoomID: res.RoomID, Message: domain.MsgSessionEnded})
		return
	}

	l.Info().Int("participants", res.RemainingCount).Msg("Participant left room")
	s.broadcast(ctx, res.Notify, domain.ParticipantLeft{
		Participant:      domain.ParticipantInfo{ID: conn, Role: res.RemovedRole},
		ParticipantCount: res.RemainingCount,
		RoomID:           res.RoomID,
	})
}

func (s *RoomService) broadcast(ctx context.Context, targets []domain.ConnectionID, event domain.OutboundEvent) {
	for _, to := range targets {
		if err := s.gateway.Send(ctx, to, event); err != nil {
			lvl := zerolog.WarnLevel
			if errors.Is(err, domain.ErrConnectionNotFound) {
				lvl = zerolog.DebugLevel
			}
			log.WithLevel(lvl).Err(err).Str("conn_id", to.String()).Str("event", event.EventName()).Msg("Notification not delivered")
		}
	}
}

type Stats struct {
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
}

func (s *RoomService) Stats() Stats {
	return Stats{
		Rooms:        s.registry.RoomCount(),
		Participants: s.registry.TotalParticipants(),
	}
}

func (s *RoomService) ParticipantsOf(rawRoomID string) []domain.ConnectionID {
	return s.registry.ParticipantsOf(domain.ParseRoomID(rawRoomID))
}

func (s *RoomService) Rooms() map[domain.RoomID][]domain.ConnectionID {
	return s.registry.Rooms()
}
