package router

import (
	"net/http"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	handlers "github.com/iobridge/iobridge/pkg/handlers/http"
	wsHandlers "github.com/iobridge/iobridge/pkg/handlers/websocket"
	"github.com/iobridge/iobridge/pkg/middleware"
	"github.com/iobridge/iobridge/pkg/version"
)

const (
	HealthPath      = "/health"
	PingPath        = "/__/ping"
	IOPath          = "/io"
	IOWebsocketPath = "/io/ws"
)

type ioRouter struct {
	middlewareTransport middleware.Transport
	handlerTransport    handlers.HandlerTransport
	wsHandlerTransport  wsHandlers.HandlerTransport
}

func NewIORouter(
	middlewareTransport middleware.Transport,
	handlerTransport handlers.HandlerTransport,
	wsHandlerTransport wsHandlers.HandlerTransport,
) ServerRouter {
	return &ioRouter{
		middlewareTransport: middlewareTransport,
		handlerTransport:    handlerTransport,
		wsHandlerTransport:  wsHandlerTransport,
	}
}

func (r *ioRouter) BuildRoutes(router *fiber.App) error {
	router.Get(HealthPath, func(ctx *fiber.Ctx) error {
		info := version.GetInfo()
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"app_name":   info.AppName,
			"version":    info.Version,
			"build_date": info.BuildDate,
			"go_version": info.GoVersion,
			"platform":   info.Platform,
			"time":       time.Now().Format(time.RFC3339),
		})
	})

	router.Get(PingPath, func(ctx *fiber.Ctx) error {
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"message": "pong",
		})
	})

	router.Use(
		r.middlewareTransport.PanicRecoverMiddleware.Middleware(),
		r.middlewareTransport.RequestIDMiddleware.Middleware(),
		r.middlewareTransport.MetricsMiddleware.Middleware(),
	)

	router.Get(IOWebsocketPath, websocket.New(
		r.wsHandlerTransport.IOHandler.Handle,
		websocket.Config{
			HandshakeTimeout: 15 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	))

	router.Get(IOPath, r.handlerTransport.IOHandler.Handle)
	router.Post(IOPath, r.handlerTransport.IOHandler.Handle)

	return nil
}
