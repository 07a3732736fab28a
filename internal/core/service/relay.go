package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/Wyydra/rendezvous/internal/core/port"
	"github.com/rs/zerolog/log"
)

// RelayService forwards negotiation payloads between connections. It
// addresses peers by raw connection id and never consults the registry.
type RelayService struct {
	gateway port.RealTimeGateway
}

func NewRelayService(gateway port.RealTimeGateway) *RelayService {
	return &RelayService{
		gateway: gateway,
	}
}

// Relay returns domain.ErrMissingTarget when the request names no target.
// Delivery failures are logged and swallowed: the sender is never told.
func (s *RelayService) Relay(ctx context.Context, from domain.ConnectionID, req domain.SignalRequest) error {
	l := log.With().Str("conn_id", from.String()).Str("event", string(req.Kind)).Logger()

	if !req.Kind.Valid() {
		l.Warn().Msg("Unknown signal kind")
		return fmt.Errorf("relay %q: %w", req.Kind, domain.ErrUnknownSignal)
	}
	if req.Target == "" {
		l.Warn().Msg("Missing target for relay message")
		return domain.ErrMissingTarget
	}

	msg := domain.RelayedSignal{
		Kind: req.Kind,
		From: from,
		Data: req.Data,
	}
	if err := s.gateway.Send(ctx, req.Target, msg); err != nil {
		if errors.Is(err, domain.ErrConnectionNotFound) {
			l.Debug().Str("target", req.Target.String()).Msg("Relay target not connected")
		} else {
			l.Warn().Err(err).Str("target", req.Target.String()).Msg("Relay delivery failed")
		}
		return nil
	}

	l.Debug().Str("target", req.Target.String()).Msg("Relayed")
	return nil
}
