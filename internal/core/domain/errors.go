package domain

import "errors"

var (
	ErrRoomNotFound       = errors.New("room not found or no longer active")
	ErrRoomFull           = errors.New("room is full")
	ErrUnauthorized       = errors.New("only the host can end the session")
	ErrMissingTarget      = errors.New("relay message has no target")
	ErrUnknownSignal      = errors.New("unknown signal kind")
	ErrIDSpaceExhausted   = errors.New("no free room id left")
	ErrAlreadyInRoom      = errors.New("connection already belongs to a room")
	ErrConnectionNotFound = errors.New("connection not found")
)

// Wire texts sent back to the requesting connection.
const (
	MsgRoomNotFound     = "Room not found or no longer active"
	MsgRoomFull         = "Room is full"
	MsgCreateRoomFailed = "Failed to create room"
	MsgJoinRoomFailed   = "Failed to join room"
	MsgSessionEnded     = "Session has been ended"
)

// ErrorMessage maps a coordinator error to the text a client sees.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return MsgRoomNotFound
	case errors.Is(err, ErrRoomFull):
		return MsgRoomFull
	case errors.Is(err, ErrIDSpaceExhausted):
		return MsgCreateRoomFailed
	default:
		return MsgJoinRoomFailed
	}
}
