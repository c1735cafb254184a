package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/domain"
)

type Options struct {
	PingInterval   time.Duration
	WriteDeadline  time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.WriteDeadline <= 0 {
		o.WriteDeadline = 10 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}

// Connection is one user's live socket. It satisfies presence.Handle.
type Connection struct {
	id   string
	uid  string
	ws   *websocket.Conn
	send chan domain.Envelope
	done chan struct{}
	once sync.Once
	opts Options
	log  *zap.Logger
}

func newConnection(id, uid string, conn *websocket.Conn, opts Options, logger *zap.Logger) *Connection {
	return &Connection{
		id:   id,
		uid:  uid,
		ws:   conn,
		send: make(chan domain.Envelope, opts.SendBuffer),
		done: make(chan struct{}),
		opts: opts,
		log:  logger,
	}
}

func (c *Connection) ID() string { return c.id }

// Push queues env for writing. It never blocks; a closed connection or a
// full buffer drops the envelope.
func (c *Connection) Push(env domain.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.once.Do(func() { close(c.done) })
}

// readPump drains client frames until the socket fails. Clients do not send
// anything meaningful; reading keeps pong and close handling alive.
func (c *Connection) readPump() {
	pongWait := c.opts.PingInterval * 2
	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("ws read", zap.String("user_id", c.uid), zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case env := <-c.send:
			b, err := json.Marshal(env)
			if err != nil {
				c.log.Error("ws marshal", zap.String("type", env.Type), zap.Error(err))
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Debug("ws write", zap.String("user_id", c.uid), zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteDeadline)); err != nil {
				c.close()
				return
			}
		}
	}
}
