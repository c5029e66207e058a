package service

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/studio-parallax/maquette-api/internal/observability"
)

const (
	channelSendBufferSize = 32
	channelPingInterval   = 30 * time.Second
)

// ChannelConn is the subset of the websocket connection the display channel
// relies on. The fiber upgrade handler passes *websocket.Conn; tests supply
// their own implementation.
type ChannelConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// displayHub tracks the open display connections and fans frames out to
// them. It synchronizes itself; the override service's own lock only orders
// state transitions against broadcasts.
type displayHub struct {
	mu      sync.RWMutex
	clients map[*displayClient]struct{}
	log     zerolog.Logger
}

func newDisplayHub(logger zerolog.Logger) *displayHub {
	return &displayHub{
		clients: make(map[*displayClient]struct{}),
		log:     logger.With().Str("component", "display_hub").Logger(),
	}
}

func (h *displayHub) register(client *displayClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
	observability.ChannelClients().Inc()
	h.log.Debug().Str("client_id", client.id).Int("clients", len(h.clients)).Msg("display connected")
}

func (h *displayHub) unregister(client *displayClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	observability.ChannelClients().Dec()
	h.log.Debug().Str("client_id", client.id).Int("clients", len(h.clients)).Msg("display disconnected")
}

// broadcast enqueues the frame for every open connection. Delivery is
// best-effort per client: a full queue or a dead socket never stalls the
// loop or the caller.
func (h *displayHub) broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.enqueue(frame, h.log)
	}
}

// closeAll force-closes every connection during shutdown. The snapshot is
// taken first because close() re-enters unregister, which needs the write
// lock.
func (h *displayHub) closeAll() {
	h.mu.RLock()
	clients := make([]*displayClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.close()
	}
}

func (h *displayHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// displayClient owns one display connection: a reader goroutine handling
// inbound frames sequentially and a writer goroutine draining the send
// queue, so a stuck socket cannot block a broadcast.
type displayClient struct {
	id      string
	conn    ChannelConn
	send    chan []byte
	service *overrideService
	closed  chan struct{}
	once    sync.Once
}

func (c *displayClient) enqueue(frame []byte, log zerolog.Logger) {
	select {
	case c.send <- frame:
	default:
		log.Warn().Str("client_id", c.id).Msg("dropping frame for slow display")
	}
}

func (c *displayClient) reader() {
	defer c.close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.service.logger.Debug().Err(err).Str("client_id", c.id).Msg("display read loop ended")
			return
		}

		c.service.handleFrame(c, data)
	}
}

func (c *displayClient) writer() {
	defer c.close()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.service.logger.Debug().Err(err).Str("client_id", c.id).Msg("display write loop terminated")
				return
			}
		case <-time.After(channelPingInterval):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Str("client_id", c.id).Msg("display ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *displayClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}
