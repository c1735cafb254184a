package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/fathima-sithara/dm-service/internal/middleware"
	"github.com/fathima-sithara/dm-service/internal/ws"
)

type ServerDeps struct {
	Handlers    *Handlers
	Verifier    *middleware.Verifier
	CookieName  string
	CORSOrigins string        // comma separated allow list, empty disables CORS
	SendLimit   fiber.Handler // optional, applied to POST /send/:id
	WS          *ws.Server    // optional
	BodyLimit   int
	Log         *zap.Logger
}

func NewServer(d ServerDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "dm-service",
		BodyLimit:             d.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(d.Log),
	})
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(d.Log))
	if d.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowCredentials: d.CORSOrigins != "*",
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if d.WS != nil {
		app.Get("/ws", d.WS.Upgrade(), d.WS.Handle())
	}

	h := d.Handlers
	api := app.Group("/api/messages", middleware.JWTAuth(d.Verifier, d.CookieName))
	api.Get("/users", h.getUsersForSidebar)
	api.Get("/online", h.getOnlineUsers)
	send := []fiber.Handler{h.sendMessage}
	if d.SendLimit != nil {
		send = append([]fiber.Handler{d.SendLimit}, send...)
	}
	api.Post("/send/:id", send...)
	api.Get("/:id", h.getMessages)

	return app
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
