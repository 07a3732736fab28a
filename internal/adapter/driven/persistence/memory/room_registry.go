package memory

import (
	"sync"
	"time"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/rs/zerolog/log"
)

type room struct {
	id           domain.RoomID
	hostID       domain.ConnectionID
	participants map[domain.ConnectionID]domain.Participant
	createdAt    time.Time
	active       bool
}

// RoomRegistry is the in-memory room store. A single RWMutex guards both the
// room index and the connection index, so every mutation (including any
// teardown it triggers) is observed as one step.
//
// implements port.RoomRegistry
type RoomRegistry struct {
	mu sync.RWMutex
	// roomID -> room
	rooms map[domain.RoomID]*room
	// connection -> roomID
	connRoom map[domain.ConnectionID]domain.RoomID

	newID domain.RoomIDGenerator
	now   func() time.Time
}

type Option func(*RoomRegistry)

func WithIDGenerator(gen domain.RoomIDGenerator) Option {
	return func(r *RoomRegistry) { r.newID = gen }
}

func WithClock(now func() time.Time) Option {
	return func(r *RoomRegistry) { r.now = now }
}

func NewRoomRegistry(opts ...Option) *RoomRegistry {
	r := &RoomRegistry{
		rooms:    make(map[domain.RoomID]*room),
		connRoom: make(map[domain.ConnectionID]domain.RoomID),
		newID:    domain.NewRoomID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateRoom registers a new room with host as its only member. Id generation
// retries until it finds a free id; it only gives up when every id is taken.
func (r *RoomRegistry) CreateRoom(host domain.ConnectionID) (domain.RoomID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.connRoom[host]; ok {
		return "", &alreadyInRoomError{roomID: current}
	}
	if len(r.rooms) >= domain.RoomIDSpace {
		return "", domain.ErrIDSpaceExhausted
	}

	var id domain.RoomID
	for {
		id = r.newID()
		if _, taken := r.rooms[id]; !taken {
			break
		}
	}

	r.rooms[id] = &room{
		id:     id,
		hostID: host,
		participants: map[domain.ConnectionID]domain.Participant{
			host: {ConnectionID: host, Role: domain.RoleHost, RoomID: id},
		},
		createdAt: r.now(),
		active:    true,
	}
	r.connRoom[host] = id

	log.Debug().Str("room_id", id.String()).Str("conn_id", host.String()).Msg("Room registered")
	return id, nil
}

// JoinRoom adds conn to roomID as a participant. limit caps the room size;
// zero or less means unlimited. A connection that belongs to another room is
// moved out of it in the same critical section, but only once the target room
// is known to accept it, so a rejected join leaves every room untouched.
func (r *RoomRegistry) JoinRoom(roomID domain.RoomID, conn domain.ConnectionID, limit int) (domain.JoinResult, error) {
	roomID = domain.ParseRoomID(roomID.String())

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok || !rm.active {
		return domain.JoinResult{}, domain.ErrRoomNotFound
	}

	current, tracked := r.connRoom[conn]
	if tracked && current == roomID {
		return domain.JoinResult{
			RoomID:           roomID,
			Role:             rm.participants[conn].Role,
			ParticipantCount: len(rm.participants),
			Peers:            rm.membersExcept(conn),
			AlreadyMember:    true,
		}, nil
	}

	if limit > 0 && len(rm.participants) >= limit {
		return domain.JoinResult{}, domain.ErrRoomFull
	}

	var left *domain.RemovalResult
	if tracked {
		res := r.removeLocked(conn, current)
		left = &res
	}

	rm.participants[conn] = domain.Participant{ConnectionID: conn, Role: domain.RoleParticipant, RoomID: roomID}
	r.connRoom[conn] = roomID

	return domain.JoinResult{
		RoomID:           roomID,
		Role:             domain.RoleParticipant,
		ParticipantCount: len(rm.participants),
		Peers:            rm.membersExcept(conn),
		Left:             left,
	}, nil
}

// RemoveParticipant drops conn from its room. The room is torn down in the
// same critical section when the host left or nobody is left.
func (r *RoomRegistry) RemoveParticipant(conn domain.ConnectionID) (domain.RemovalResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.connRoom[conn]
	if !ok {
		return domain.RemovalResult{}, false
	}
	return r.removeLocked(conn, roomID), true
}

func (r *RoomRegistry) removeLocked(conn domain.ConnectionID, roomID domain.RoomID) domain.RemovalResult {
	rm := r.rooms[roomID]
	p := rm.participants[conn]

	delete(rm.participants, conn)
	delete(r.connRoom, conn)

	res := domain.RemovalResult{
		RoomID:         roomID,
		RemovedRole:    p.Role,
		RemainingCount: len(rm.participants),
	}

	if p.Role == domain.RoleHost || len(rm.participants) == 0 {
		res.Notify = append(r.teardownLocked(rm), conn)
		res.TornDown = true
		return res
	}

	res.Notify = rm.membersExcept("")
	return res
}

// TeardownIfHost ends roomID on behalf of conn. It fails with
// domain.ErrRoomNotFound or domain.ErrUnauthorized without touching state.
func (r *RoomRegistry) TeardownIfHost(roomID domain.RoomID, conn domain.ConnectionID) ([]domain.ConnectionID, error) {
	roomID = domain.ParseRoomID(roomID.String())

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if p, member := rm.participants[conn]; !member || p.Role != domain.RoleHost {
		return nil, domain.ErrUnauthorized
	}
	return r.teardownLocked(rm), nil
}

// TeardownRoom removes a room and every member from both indexes and returns
// the affected connections. Unknown rooms are a no-op.
func (r *RoomRegistry) TeardownRoom(roomID domain.RoomID) []domain.ConnectionID {
	roomID = domain.ParseRoomID(roomID.String())

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return r.teardownLocked(rm)
}

func (r *RoomRegistry) teardownLocked(rm *room) []domain.ConnectionID {
	rm.active = false
	removed := make([]domain.ConnectionID, 0, len(rm.participants))
	for id := range rm.participants {
		delete(r.connRoom, id)
		removed = append(removed, id)
	}
	rm.participants = make(map[domain.ConnectionID]domain.Participant)
	delete(r.rooms, rm.id)

	log.Debug().Str("room_id", rm.id.String()).Int("removed", len(removed)).Msg("Room torn down")
	return removed
}

func (r *RoomRegistry) Lookup(roomID domain.RoomID) (domain.Room, bool) {
	roomID = domain.ParseRoomID(roomID.String())

	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return domain.Room{}, false
	}
	participants := make(map[domain.ConnectionID]domain.Participant, len(rm.participants))
	for id, p := range rm.participants {
		participants[id] = p
	}
	return domain.Room{
		ID:           rm.id,
		HostID:       rm.hostID,
		Participants: participants,
		CreatedAt:    rm.createdAt,
		Active:       rm.active,
	}, true
}

func (r *RoomRegistry) RoomOf(conn domain.ConnectionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.connRoom[conn]
	return id, ok
}

func (r *RoomRegistry) ParticipantsOf(roomID domain.RoomID) []domain.ConnectionID {
	roomID = domain.ParseRoomID(roomID.String())

	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return []domain.ConnectionID{}
	}
	return rm.membersExcept("")
}

func (r *RoomRegistry) Rooms() map[domain.RoomID][]domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[domain.RoomID][]domain.ConnectionID, len(r.rooms))
	for id, rm := range r.rooms {
		out[id] = rm.membersExcept("")
	}
	return out
}

func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *RoomRegistry) TotalParticipants() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// connRoom mirrors the participant sets, so its size is the total.
	return len(r.connRoom)
}

func (rm *room) membersExcept(skip domain.ConnectionID) []domain.ConnectionID {
	out := make([]domain.ConnectionID, 0, len(rm.participants))
	for id := range rm.participants {
		if id == skip {
			continue
		}
		out = append(out, id)
	}
	return out
}

type alreadyInRoomError struct {
	roomID domain.RoomID
}

func (e *alreadyInRoomError) Error() string {
	return "connection already belongs to room " + e.roomID.String()
}

func (e *alreadyInRoomError) Unwrap() error {
	return domain.ErrAlreadyInRoom
}
