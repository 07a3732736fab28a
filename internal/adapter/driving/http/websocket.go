package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

var (
	errClientClosed   = errors.New("client closed")
	errSendBufferFull = errors.New("send buffer full")
)

// WSClient is one websocket connection. Outbound frames are queued on send
// and written by writePump, so callers never block on the network.
type WSClient struct {
	id   domain.ConnectionID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	pingInterval time.Duration
	log          zerolog.Logger
}

func newWSClient(conn *websocket.Conn, pingInterval time.Duration) *WSClient {
	id := domain.NewConnectionID()
	return &WSClient{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		log:          log.With().Str("conn_id", id.String()).Logger(),
	}
}

func (c *WSClient) ID() domain.ConnectionID {
	return c.id
}

func (c *WSClient) Send(event domain.OutboundEvent) error {
	payload, err := encodeOutbound(event)
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *WSClient) enqueue(payload []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		c.log.Warn().Msg("Send buffer full, dropping message")
		return errSendBufferFull
	}
}

// Close stops the write pump, which sends a close frame and drops the
// connection; the read loop then ends on its own.
func (c *WSClient) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug().Err(err).Msg("Write failed")
				c.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug().Err(err).Msg("Ping failed")
				c.Close()
				return
			}

		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes whatever is still queued, so notifications produced by the
// disconnect itself still go out when the peer is reachable.
func (c *WSClient) flush() {
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}

// HTTP handler
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error while upgrading ws")
		return
	}

	client := newWSClient(conn, h.cfg.PingInterval())
	l := client.log
	l.Info().Str("remote_addr", r.RemoteAddr).Msg("New client connected")

	// The request context ends with this handler; notifications triggered by
	// the disconnect must still go out.
	ctx := context.WithoutCancel(r.Context())

	h.Hub.Register(client)
	go client.writePump()

	defer func() {
		h.RoomService.Handle(ctx, client.id, domain.Disconnected{})
		h.Hub.Unregister(client)
		client.Close()
		l.Info().Msg("Client disconnected")
	}()

	if err := client.Send(domain.Connected{ID: client.id}); err != nil {
		l.Warn().Err(err).Msg("Failed to greet client")
		return
	}

	conn.SetReadLimit(h.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.SocketTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.SocketTimeout))
	})

	for {
		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				l.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}
		if msgType != websocket.TextMessage {
			l.Warn().Int("type", msgType).Msg("Ignoring non-text frame")
			continue
		}

		event, reqID, err := decodeInbound(frame)
		if err != nil {
			l.Warn().Err(err).Msg("Ignoring malformed frame")
			continue
		}

		reply, ok := h.RoomService.Handle(ctx, client.id, event)
		if !ok {
			continue
		}
		payload, err := encodeReply(reqID, reply)
		if err != nil {
			l.Error().Err(err).Str("event", event.EventName()).Msg("Failed to encode reply")
			continue
		}
		_ = client.enqueue(payload)
	}
}
