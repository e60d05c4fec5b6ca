package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrPushTimeout   = errors.New("push timed out: event buffer full")
)

// Command is an outbound instruction for the client, minimally tagged with a
// "command" kind. The application decides the rest of the shape.
type Command map[string]interface{}

// Event is a client-originated payload delivered into a session.
type Event map[string]interface{}

const CommandKindKey = "command"

func CloseSessionCommand() Command {
	return Command{CommandKindKey: "close_session"}
}

// Session is a long-lived conversation between one client and server-side
// application logic. The transport layer only ever sees this contract and
// never inspects which execution model backs it.
type Session interface {
	// Push delivers a client event. It may block up to the configured push
	// timeout when the event buffer is saturated.
	Push(ctx context.Context, ev Event) error
	// Pull drains the queued outbound commands. It never blocks and returns
	// commands in the order the application sent them.
	Pull() []Command
	// Closed reports whether the application has terminated.
	Closed() bool
	// Close tears the session down and releases its execution resources.
	// Safe to call more than once.
	Close()
}

// Factory builds a fresh Session bound to the application entry point.
type Factory func() (Session, error)

// AppFunc is the application entry point run once per session.
type AppFunc func(io *IO)

// IO is the handle application code uses to talk to its client.
type IO struct {
	send func(Command)
	next func(ctx context.Context) (Event, error)
}

// Send queues a command for the client. Commands sent after the session
// closed are dropped.
func (io *IO) Send(cmd Command) {
	io.send(cmd)
}

// NextEvent blocks until the client pushes an event, the context is done, or
// the session is torn down (ErrSessionClosed).
func (io *IO) NextEvent(ctx context.Context) (Event, error) {
	return io.next(ctx)
}

// Options carries the per-session tuning shared by both execution models.
type Options struct {
	EventBufferSize int
	PushTimeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = 64
	}
	if o.PushTimeout <= 0 {
		o.PushTimeout = 10 * time.Second
	}
	return o
}
