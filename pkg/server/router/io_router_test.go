package router

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handlers "github.com/iobridge/iobridge/pkg/handlers/http"
	wsHandlers "github.com/iobridge/iobridge/pkg/handlers/websocket"
	"github.com/iobridge/iobridge/pkg/middleware"
	"github.com/iobridge/iobridge/pkg/registry"
	"github.com/iobridge/iobridge/pkg/session"
	"github.com/iobridge/iobridge/pkg/version"
)

func newTestRouterApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	reg := registry.New(4*time.Hour, 2*time.Minute, logger)
	factory := func() (session.Session, error) {
		app := func(io *session.IO) {
			_, _ = io.NextEvent(context.Background())
		}
		return session.NewWorkerSession(app, session.Options{}, logger), nil
	}

	r := NewIORouter(
		middleware.Transport{
			PanicRecoverMiddleware: middleware.NewPanicRecoverMiddleware(logger),
			RequestIDMiddleware:    middleware.NewRequestIDMiddleware(),
			MetricsMiddleware:      middleware.NewMetricsMiddleware(logger),
		},
		handlers.HandlerTransport{IOHandler: handlers.NewIOHandler(logger, reg, factory)},
		wsHandlers.HandlerTransport{IOHandler: wsHandlers.NewIOWebsocketHandler(logger, reg, factory)},
	)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	require.NoError(t, r.BuildRoutes(app))
	return app
}

func TestIORouter_HealthReportsBuildInfo(t *testing.T) {
	app := newTestRouterApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", HealthPath, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	info := version.GetInfo()
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, info.AppName, body["app_name"])
	assert.Equal(t, info.Version, body["version"])
	assert.Equal(t, info.GoVersion, body["go_version"])
	assert.Equal(t, info.Platform, body["platform"])
	assert.NotEmpty(t, body["time"])
}

func TestIORouter_Ping(t *testing.T) {
	app := newTestRouterApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", PingPath, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "pong", body["message"])
}
