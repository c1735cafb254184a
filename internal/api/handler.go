package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/errs"
	"github.com/fathima-sithara/dm-service/internal/middleware"
	"github.com/fathima-sithara/dm-service/internal/service"
)

type MessageAPI interface {
	SendMessage(ctx context.Context, senderID, receiverID string, in service.SendInput) (*domain.Message, error)
	GetMessages(ctx context.Context, myID, otherID string) ([]*domain.Message, error)
	GetUsersForSidebar(ctx context.Context, myID string) ([]*domain.User, error)
}

// OnlineFunc lists user ids with a live connection.
type OnlineFunc func(ctx context.Context) ([]string, error)

type Handlers struct {
	svc    MessageAPI
	online OnlineFunc
	log    *zap.Logger
}

func NewHandlers(svc MessageAPI, online OnlineFunc, logger *zap.Logger) *Handlers {
	return &Handlers{svc: svc, online: online, log: logger}
}

// GET /users
func (h *Handlers) getUsersForSidebar(c *fiber.Ctx) error {
	users, err := h.svc.GetUsersForSidebar(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return h.fail(c, "getUsersForSidebar", err)
	}
	return c.JSON(users)
}

// GET /:id
func (h *Handlers) getMessages(c *fiber.Ctx) error {
	msgs, err := h.svc.GetMessages(c.UserContext(), middleware.UserID(c), peerID(c))
	if err != nil {
		return h.fail(c, "getMessages", err)
	}
	return c.JSON(msgs)
}

// POST /send/:id
func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	var in service.SendInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	msg, err := h.svc.SendMessage(c.UserContext(), middleware.UserID(c), peerID(c), in)
	if err != nil {
		return h.fail(c, "sendMessage", err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// peerID copies the :id param out of the request buffer. The id ends up in
// messages that outlive the handler (pushed frames, kafka records).
func peerID(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("id"))
}

// GET /online
func (h *Handlers) getOnlineUsers(c *fiber.Ctx) error {
	ids, err := h.online(c.UserContext())
	if err != nil {
		return h.fail(c, "getOnlineUsers", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(ids)
}

// fail maps error kinds to statuses. Anything unclassified is a generic 500.
func (h *Handlers) fail(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, errs.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	case errors.Is(err, errs.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
	}
	h.log.Error("Error in "+op, zap.String("user_id", middleware.UserID(c)), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}
