package http

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fastjson"

	"github.com/iobridge/iobridge/pkg/common"
	"github.com/iobridge/iobridge/pkg/infra/prometheus"
	"github.com/iobridge/iobridge/pkg/registry"
	"github.com/iobridge/iobridge/pkg/session"
)

type ioHandler struct {
	logger   *logrus.Logger
	registry *registry.Registry
	factory  session.Factory
}

func NewIOHandler(
	logger *logrus.Logger,
	reg *registry.Registry,
	factory session.Factory,
) Handler {
	return &ioHandler{
		logger:   logger,
		registry: reg,
		factory:  factory,
	}
}

// Handle is the per-request state machine bridging stateless HTTP calls to
// long-lived sessions. Side effects run in a fixed order: push the client
// event, sweep if due, pull pending commands, detect the closed state and
// remove the registry/expiry pair, then attach the identifier header.
// Reordering would drop a just-pushed event or echo a stale identifier.
func (h *ioHandler) Handle(c *fiber.Ctx) error {
	// liveness probe for deployment health checks, independent of sessions
	if c.Query("test") != "" {
		return c.SendString("ok")
	}

	var (
		sess       session.Session
		newSession bool
	)
	sid := c.Get(common.SessionIDHeader)
	if sid == "" {
		var err error
		sid, sess, err = h.registry.Create(h.factory)
		if err != nil {
			h.logger.WithError(err).Error("failed to create session")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create session"})
		}
		newSession = true
	} else {
		var ok bool
		sess, ok = h.registry.Lookup(sid)
		if !ok {
			// already evicted or closed server-side: tell the client to
			// tear down its local state, nothing else to do
			return c.JSON([]session.Command{session.CloseSessionCommand()})
		}
	}

	if c.Method() == fiber.MethodPost {
		if done, err := h.pushEvent(c, sid, sess); done {
			if newSession {
				// the client never learned the identifier, reclaim the
				// session instead of leaving it for the sweep
				h.registry.Remove(sid)
			}
			return err
		}
	}

	h.registry.SweepIfDue()

	commands := sess.Pull()
	if commands == nil {
		commands = []session.Command{}
	}
	prometheus.CommandsPulled.Add(float64(len(commands)))

	if sess.Closed() {
		h.registry.Remove(sid)
	} else if newSession {
		c.Set(common.SessionIDHeader, sid)
	}

	return c.JSON(commands)
}

// pushEvent delivers the POST body to the session. done reports that a
// response was already written and the dispatcher must stop.
func (h *ioHandler) pushEvent(c *fiber.Ctx, sid string, sess session.Session) (bool, error) {
	body := c.Body()
	if err := fastjson.ValidateBytes(body); err != nil {
		h.logger.WithError(err).WithField("session_id", sid).Warn("malformed event payload")
		return true, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid event payload"})
	}

	var ev session.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return true, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "event payload must be a JSON object"})
	}

	h.logger.WithFields(logrus.Fields{
		"session_id": sid,
		"event":      fastjson.GetString(body, "event"),
	}).Debug("client event received")

	if err := sess.Push(c.Context(), ev); err != nil {
		if errors.Is(err, session.ErrSessionClosed) {
			// the pull below still delivers the closing command
			return false, nil
		}
		h.logger.WithError(err).WithField("session_id", sid).Error("failed to push client event")
		return true, c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "session not accepting events"})
	}
	prometheus.EventsPushed.Inc()
	return false, nil
}
