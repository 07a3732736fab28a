package ws

import (
	"context"
	"sync"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/rs/zerolog/log"
)

// implements port.RealTimeGateway
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.ConnectionID]Client
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[domain.ConnectionID]Client),
	}
}

// Send delivers to the connection's own queue. A target that is not
// registered yields domain.ErrConnectionNotFound.
func (h *Hub) Send(ctx context.Context, to domain.ConnectionID, event domain.OutboundEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	client, ok := h.clients[to]
	h.mu.RUnlock()
	if !ok {
		return domain.ErrConnectionNotFound
	}
	return client.Send(event)
}

// Register adds a client. After Stop it closes the client instead.
func (h *Hub) Register(c Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = c.Close()
		return
	}
	h.clients[c.ID()] = c
	count := len(h.clients)
	h.mu.Unlock()

	log.Info().Str("conn_id", c.ID().String()).Int("count", count).Msg("Client registered")
}

// Unregister removes the client if it is still the one registered under its id.
func (h *Hub) Unregister(c Client) {
	h.mu.Lock()
	current, ok := h.clients[c.ID()]
	if ok && current == c {
		delete(h.clients, c.ID())
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok && current == c {
		log.Info().Str("conn_id", c.ID().String()).Int("count", count).Msg("Client unregistered")
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop closes every registered client and refuses new ones.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[domain.ConnectionID]Client)
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Str("conn_id", client.ID().String()).Msg("Error closing client connection")
		}
	}
	log.Info().Int("count", len(clients)).Msg("Hub stopped")
}
