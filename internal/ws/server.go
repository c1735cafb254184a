// Package ws serves the live push channel.
package ws

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/middleware"
	"github.com/fathima-sithara/dm-service/internal/presence"
	"github.com/fathima-sithara/dm-service/internal/utils"
)

type TokenValidator interface {
	Validate(token string) (string, error)
}

type Server struct {
	dir        *presence.Directory
	jv         TokenValidator
	cookieName string
	opts       Options
	log        *zap.Logger
}

func NewServer(dir *presence.Directory, jv TokenValidator, cookieName string, opts Options, logger *zap.Logger) *Server {
	return &Server{dir: dir, jv: jv, cookieName: cookieName, opts: opts.withDefaults(), log: logger}
}

// Upgrade authenticates the handshake. Tokens come from the header, the
// session cookie or the "token" query parameter.
func (s *Server) Upgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		tok := middleware.TokenFromRequest(c, s.cookieName)
		if tok == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing token"})
		}
		uid, err := s.jv.Validate(tok)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals("user_id", uid)
		return c.Next()
	}
}

func (s *Server) Handle() fiber.Handler {
	return websocket.New(s.serve)
}

func (s *Server) serve(conn *websocket.Conn) {
	uid, _ := conn.Locals("user_id").(string)
	if uid == "" {
		_ = conn.Close()
		return
	}

	c := newConnection(utils.NewID(), uid, conn, s.opts, s.log)
	if prev := s.dir.Register(uid, c); prev != nil {
		s.log.Info("ws session replaced", zap.String("user_id", uid), zap.String("old_conn", prev.ID()))
	}
	s.log.Info("ws connected", zap.String("user_id", uid), zap.String("conn_id", c.ID()))
	s.broadcastOnline()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()
	c.readPump()

	// the conn is recycled once serve returns, so the writer must be gone first
	c.close()
	<-writerDone
	if s.dir.Unregister(uid, c.ID()) {
		s.broadcastOnline()
	}
	s.log.Info("ws disconnected", zap.String("user_id", uid), zap.String("conn_id", c.ID()))
}

func (s *Server) broadcastOnline() {
	s.dir.Broadcast(domain.OnlineUsersEvent(s.dir.Online()))
}
