package domain

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

// ConnectionID identifies one live transport connection.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.New().String())
}

func (id ConnectionID) String() string {
	return string(id)
}

type RoomID string

const (
	RoomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	RoomIDLength   = 6

	// RoomIDSpace is the number of distinct room ids (36^6).
	RoomIDSpace = 36 * 36 * 36 * 36 * 36 * 36
)

// ParseRoomID normalizes user input: room ids match case-insensitively.
func ParseRoomID(s string) RoomID {
	return RoomID(strings.ToUpper(strings.TrimSpace(s)))
}

func (id RoomID) String() string {
	return string(id)
}

// RoomIDGenerator returns a candidate id. Uniqueness is the registry's job.
type RoomIDGenerator func() RoomID

// NewRoomID draws RoomIDLength symbols from RoomIDAlphabet using crypto/rand.
func NewRoomID() RoomID {
	// 252 is the largest multiple of 36 that fits in a byte; anything above
	// is rejected so every symbol stays equally likely.
	const limit = 252

	out := make([]byte, 0, RoomIDLength)
	var buf [RoomIDLength * 2]byte
	for len(out) < RoomIDLength {
		if _, err := rand.Read(buf[:]); err != nil {
			panic(err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, RoomIDAlphabet[int(b)%len(RoomIDAlphabet)])
			if len(out) == RoomIDLength {
				break
			}
		}
	}
	return RoomID(out)
}
