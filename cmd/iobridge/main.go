package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/iobridge/iobridge/pkg/config"
	handlers "github.com/iobridge/iobridge/pkg/handlers/http"
	wsHandlers "github.com/iobridge/iobridge/pkg/handlers/websocket"
	infraLogger "github.com/iobridge/iobridge/pkg/infra/logger"
	"github.com/iobridge/iobridge/pkg/middleware"
	"github.com/iobridge/iobridge/pkg/registry"
	"github.com/iobridge/iobridge/pkg/server"
	"github.com/iobridge/iobridge/pkg/server/router"
	"github.com/iobridge/iobridge/pkg/session"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger()

	cfg, err := config.Load("./config")
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	reg := registry.New(cfg.SessionExpiry(), cfg.SweepInterval(), logger)

	opts := session.Options{
		EventBufferSize: cfg.Session.EventBufferSize,
		PushTimeout:     cfg.PushTimeout(),
	}

	var loop *session.EventLoop
	var factory session.Factory
	if cfg.Session.Engine == config.EngineEventLoop {
		loop = session.NewEventLoop(logger)
		if cfg.Session.StartEventLoop {
			loop.Start()
		}
		factory = func() (session.Session, error) {
			// idempotent, covers the lazy-start configuration
			loop.Start()
			return session.NewLoopSession(echoApp, loop, opts, logger), nil
		}
	} else {
		factory = func() (session.Session, error) {
			return session.NewWorkerSession(echoApp, opts, logger), nil
		}
	}

	middlewareTransport := middleware.Transport{
		PanicRecoverMiddleware: middleware.NewPanicRecoverMiddleware(logger),
		RequestIDMiddleware:    middleware.NewRequestIDMiddleware(),
		MetricsMiddleware:      middleware.NewMetricsMiddleware(logger),
	}

	handlerTransport := handlers.HandlerTransport{
		IOHandler: handlers.NewIOHandler(logger, reg, factory),
	}

	wsHandlerTransport := wsHandlers.HandlerTransport{
		IOHandler: wsHandlers.NewIOWebsocketHandler(logger, reg, factory),
	}

	srv := server.NewIOServer(server.IOServerDI{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Routers: []router.ServerRouter{
			router.NewIORouter(middlewareTransport, handlerTransport, wsHandlerTransport),
		},
	})

	g, _ := errgroup.WithContext(context.Background())
	g.Go(srv.Run)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	fmt.Println("shutting down server...")
	if err := srv.Shutdown(); err != nil {
		fmt.Println("error shutting down server:", err)
		os.Exit(1)
	}
	if loop != nil {
		loop.Stop()
	}
	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server terminated with error")
	}
	fmt.Println("server gracefully stopped")
}

// echoApp is the built-in demo application: it greets the client and echoes
// every event back as an output command until the session is torn down.
func echoApp(io *session.IO) {
	io.Send(session.Command{
		"command": "output",
		"spec":    map[string]interface{}{"content": "connected"},
	})
	for {
		ev, err := io.NextEvent(context.Background())
		if err != nil {
			return
		}
		io.Send(session.Command{
			"command": "output",
			"spec":    map[string]interface{}{"content": ev},
		})
	}
}
