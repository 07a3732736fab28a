package ws

import "github.com/Wyydra/rendezvous/internal/core/domain"

// Client is one live connection registered with the Hub. Send must not block
// on network I/O; implementations queue and write from their own goroutine.
type Client interface {
	ID() domain.ConnectionID
	Send(event domain.OutboundEvent) error
	Close() error
}
