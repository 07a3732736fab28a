package port

import (
	"context"

	"github.com/Wyydra/rendezvous/internal/core/domain"
)

// RealTimeGateway delivers outbound events to live connections.
// Send returns domain.ErrConnectionNotFound when the target is not connected.
type RealTimeGateway interface {
	Send(ctx context.Context, to domain.ConnectionID, event domain.OutboundEvent) error
}
