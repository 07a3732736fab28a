package domain

import "encoding/json"

// Event names as they appear on the wire.
const (
	EventCreateRoom       = "create-room"
	EventJoinRoom         = "join-room"
	EventLeaveRoom        = "leave-room"
	EventEndSession       = "end-session"
	EventOffer            = "offer"
	EventAnswer           = "answer"
	EventICECandidate     = "ice-candidate"
	EventParticipantJoin  = "participant-joined"
	EventParticipantLeave = "participant-left"
	EventSessionEnded     = "session-ended"
	EventConnected        = "connected"
	EventAck              = "ack"
)

// SignalKind is one of the relayable negotiation events.
type SignalKind string

const (
	SignalOffer        SignalKind = EventOffer
	SignalAnswer       SignalKind = EventAnswer
	SignalICECandidate SignalKind = EventICECandidate
)

func (k SignalKind) Valid() bool {
	switch k {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return true
	}
	return false
}

// InboundEvent is the closed set of requests a connection can make.
type InboundEvent interface {
	EventName() string
}

type CreateRoomRequest struct{}

type JoinRoomRequest struct {
	RoomID string
}

type LeaveRoomRequest struct {
	RoomID string
}

type EndSessionRequest struct {
	RoomID string
}

// SignalRequest carries an opaque negotiation payload. Data is the whole
// object the client sent, target included.
type SignalRequest struct {
	Kind   SignalKind
	Target ConnectionID
	Data   json.RawMessage
}

// Disconnected is generated by the transport when a connection goes away.
type Disconnected struct{}

func (CreateRoomRequest) EventName() string { return EventCreateRoom }
func (JoinRoomRequest) EventName() string   { return EventJoinRoom }
func (LeaveRoomRequest) EventName() string  { return EventLeaveRoom }
func (EndSessionRequest) EventName() string { return EventEndSession }
func (s SignalRequest) EventName() string   { return string(s.Kind) }
func (Disconnected) EventName() string      { return "disconnect" }

// Reply is the synchronous answer to a request event.
type Reply interface {
	replyTo() string
}

type CreateRoomReply struct {
	Success bool   `json:"success"`
	RoomID  RoomID `json:"roomId,omitempty"`
	Role    Role   `json:"role,omitempty"`
	Error   string `json:"error,omitempty"`
}

type JoinRoomReply struct {
	Success          bool   `json:"success"`
	RoomID           RoomID `json:"roomId,omitempty"`
	Role             Role   `json:"role,omitempty"`
	ParticipantCount int    `json:"participantCount,omitempty"`
	Error            string `json:"error,omitempty"`
}

func (CreateRoomReply) replyTo() string { return EventCreateRoom }
func (JoinRoomReply) replyTo() string   { return EventJoinRoom }

// OutboundEvent is the closed set of notifications pushed to connections.
type OutboundEvent interface {
	EventName() string
}

type ParticipantInfo struct {
	ID   ConnectionID `json:"id"`
	Role Role         `json:"role"`
}

type ParticipantJoined struct {
	Participant      ParticipantInfo `json:"participant"`
	ParticipantCount int             `json:"participantCount"`
	RoomID           RoomID          `json:"roomId"`
}

type ParticipantLeft struct {
	Participant      ParticipantInfo `json:"participant"`
	ParticipantCount int             `json:"participantCount"`
	RoomID           RoomID          `json:"roomId"`
}

type SessionEnded struct {
	RoomID  RoomID `json:"roomId"`
	Message string `json:"message"`
}

// RelayedSignal is a negotiation payload on its way to the addressed peer.
// Data is forwarded verbatim; the transport attaches From under "from".
type RelayedSignal struct {
	Kind SignalKind
	From ConnectionID
	Data json.RawMessage
}

// Connected tells a fresh connection its own identity.
type Connected struct {
	ID ConnectionID `json:"id"`
}

func (ParticipantJoined) EventName() string { return EventParticipantJoin }
func (ParticipantLeft) EventName() string   { return EventParticipantLeave }
func (SessionEnded) EventName() string      { return EventSessionEnded }
func (r RelayedSignal) EventName() string   { return string(r.Kind) }
func (Connected) EventName() string         { return EventConnected }
