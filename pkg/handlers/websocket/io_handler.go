package websocket

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"

	"github.com/iobridge/iobridge/pkg/common"
	"github.com/iobridge/iobridge/pkg/registry"
	"github.com/iobridge/iobridge/pkg/session"
)

const pullInterval = 100 * time.Millisecond

// ioWebsocketHandler bridges one websocket connection to one session. The
// connection replaces the polling protocol: a reader goroutine pushes client
// events, the writer loop drains pending commands on a short ticker.
type ioWebsocketHandler struct {
	logger   *logrus.Logger
	registry *registry.Registry
	factory  session.Factory
}

func NewIOWebsocketHandler(
	logger *logrus.Logger,
	reg *registry.Registry,
	factory session.Factory,
) Handler {
	return &ioWebsocketHandler{
		logger:   logger,
		registry: reg,
		factory:  factory,
	}
}

func (h *ioWebsocketHandler) Handle(c *websocket.Conn) {
	sid, sess, err := h.registry.Create(h.factory)
	if err != nil {
		h.logger.WithError(err).Error("failed to create websocket session")
		return
	}
	defer h.registry.Remove(sid)

	log := h.logger.WithField("session_id", sid)
	log.Debug("websocket session opened")

	// first frame hands the identifier to the client, mirroring the
	// response header of the polling protocol
	if err := c.WriteJSON(session.Command{common.SessionIDHeader: sid}); err != nil {
		log.WithError(err).Warn("failed to write session id frame")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gone := make(chan struct{})
	go h.readEvents(ctx, c, sess, log, gone)

	ticker := time.NewTicker(pullInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			commands := sess.Pull()
			if len(commands) > 0 {
				if err := c.WriteJSON(commands); err != nil {
					log.WithError(err).Debug("websocket write failed")
					return
				}
			}
			if sess.Closed() {
				// final batch already flushed above
				log.Debug("websocket session closed by application")
				return
			}
		case <-gone:
			log.Debug("websocket client disconnected")
			return
		}
	}
}

func (h *ioWebsocketHandler) readEvents(
	ctx context.Context,
	c *websocket.Conn,
	sess session.Session,
	log *logrus.Entry,
	gone chan struct{},
) {
	defer close(gone)
	for {
		var ev session.Event
		if err := c.ReadJSON(&ev); err != nil {
			return
		}
		if err := sess.Push(ctx, ev); err != nil {
			log.WithError(err).Debug("failed to push websocket event")
			return
		}
	}
}
