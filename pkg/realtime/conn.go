package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"workshop/pkg/claims"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// State is the lifecycle position of a connection. The only transitions are
// Connecting -> Authenticated -> Closed and Connecting -> Closed.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var errConnClosed = errors.New("connection closed")

type Conn struct {
	id       string
	ws       *websocket.Conn
	registry *Registry
	logger   *slog.Logger

	send chan []byte
	done chan struct{}

	mu       sync.Mutex
	state    State
	identity claims.Identity

	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, registry *Registry, logger *slog.Logger) *Conn {
	return &Conn{
		id:       id,
		ws:       ws,
		registry: registry,
		logger:   logger.With("conn_id", id),
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		state:    StateConnecting,
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Identity() claims.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// authenticate admits the connection into the registry. It fails if the
// connection was closed first, so a dead link is never registered.
func (c *Conn) authenticate(id claims.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnecting {
		return errConnClosed
	}
	if err := c.registry.Register(c.id, id, c); err != nil {
		return err
	}
	c.state = StateAuthenticated
	c.identity = id
	c.logger = c.logger.With("user_id", id.UserID, "role", id.Role.String())
	return nil
}

// Send never blocks; a full buffer or a closed connection drops msg.
func (c *Conn) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close is safe to call from any goroutine any number of times; the first
// call unregisters the connection if it had been admitted.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		wasAuthenticated := c.state == StateAuthenticated
		c.state = StateClosed
		logger := c.logger
		c.mu.Unlock()

		if wasAuthenticated {
			c.registry.Unregister(c.id)
		}
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		_ = c.ws.Close()
		logger.Debug("realtime connection closed")
	})
}

func (c *Conn) readPump() {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("realtime read failed", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Debug("unreadable client message", "error", err)
			continue
		}

		switch msg.Event {
		case "ping":
			if reply, err := encodeEnvelope(EventPong, nil); err == nil {
				c.Send(reply)
			}
		default:
			c.logger.Debug("ignored client event", "event", msg.Event)
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
