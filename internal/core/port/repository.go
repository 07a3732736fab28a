package port

import "github.com/Wyydra/rendezvous/internal/core/domain"

// RoomRegistry owns room and membership state. Every method is atomic with
// respect to the others, and none of them performs I/O.
type RoomRegistry interface {
	CreateRoom(host domain.ConnectionID) (domain.RoomID, error)
	// JoinRoom applies limit (<= 0 for none) and moves conn out of any other
	// room only when the join succeeds.
	JoinRoom(roomID domain.RoomID, conn domain.ConnectionID, limit int) (domain.JoinResult, error)
	RemoveParticipant(conn domain.ConnectionID) (domain.RemovalResult, bool)
	TeardownRoom(roomID domain.RoomID) []domain.ConnectionID
	TeardownIfHost(roomID domain.RoomID, conn domain.ConnectionID) ([]domain.ConnectionID, error)

	Lookup(roomID domain.RoomID) (domain.Room, bool)
	RoomOf(conn domain.ConnectionID) (domain.RoomID, bool)
	ParticipantsOf(roomID domain.RoomID) []domain.ConnectionID
	Rooms() map[domain.RoomID][]domain.ConnectionID
	RoomCount() int
	TotalParticipants() int
}
