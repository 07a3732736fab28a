package domain

import "time"

type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

type Participant struct {
	ConnectionID ConnectionID
	Role         Role
	RoomID       RoomID
}

// Room is a point-in-time view of a registry room. The registry hands out
// copies; mutating one has no effect on registry state.
type Room struct {
	ID           RoomID
	HostID       ConnectionID
	Participants map[ConnectionID]Participant
	CreatedAt    time.Time
	Active       bool
}

func (r Room) ParticipantCount() int {
	return len(r.Participants)
}

func (r Room) RoleOf(id ConnectionID) (Role, bool) {
	p, ok := r.Participants[id]
	if !ok {
		return "", false
	}
	return p.Role, true
}

// JoinResult is what the registry reports after a successful JoinRoom.
type JoinResult struct {
	RoomID           RoomID
	Role             Role
	ParticipantCount int
	// Peers are the other members of the room, the ones to notify.
	Peers []ConnectionID
	// AlreadyMember is set when the connection was in the room before the call.
	AlreadyMember bool
	// Left is set when the connection was moved out of another room.
	Left *RemovalResult
}

// RemovalResult is what the registry reports after RemoveParticipant.
type RemovalResult struct {
	RoomID         RoomID
	RemovedRole    Role
	RemainingCount int
	TornDown       bool
	// Notify holds the remaining members, or every former member (the removed
	// connection included) when the room was torn down.
	Notify []ConnectionID
}
