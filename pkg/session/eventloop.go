package session

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrLoopStopped = errors.New("event loop stopped")

// EventLoop is a single-goroutine task runner. All LoopSession state lives
// on the loop goroutine, so sessions sharing a loop need no per-session
// locking. Submission is safe from any goroutine.
type EventLoop struct {
	logger    *logrus.Logger
	tasks     chan func()
	quit      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewEventLoop(logger *logrus.Logger) *EventLoop {
	return &EventLoop{
		logger:  logger,
		tasks:   make(chan func(), 256),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start launches the loop goroutine. Called once at server boot.
func (l *EventLoop) Start() {
	l.startOnce.Do(func() {
		go l.run()
	})
}

func (l *EventLoop) run() {
	defer close(l.stopped)
	l.logger.Info("session event loop started")
	for {
		select {
		case task := <-l.tasks:
			l.exec(task)
		case <-l.quit:
			// drain whatever was already queued
			for {
				select {
				case task := <-l.tasks:
					l.exec(task)
				default:
					return
				}
			}
		}
	}
}

func (l *EventLoop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.WithField("panic", r).Error("event loop task panicked")
		}
	}()
	task()
}

// Do runs task on the loop goroutine and waits for it to finish.
func (l *EventLoop) Do(task func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		task()
	}
	select {
	case l.tasks <- wrapped:
	case <-l.stopped:
		return ErrLoopStopped
	}
	select {
	case <-done:
		return nil
	case <-l.stopped:
		return ErrLoopStopped
	}
}

func (l *EventLoop) Stop() {
	l.stopOnce.Do(func() {
		close(l.quit)
	})
	<-l.stopped
}

// LoopSession is the cooperative session variant. The application function
// still gets its own goroutine (its logic is imperative), but every mutation
// of session state is confined to the shared event loop.
type LoopSession struct {
	logger *logrus.Logger
	loop   *EventLoop
	events chan Event

	quit      chan struct{}
	closeOnce sync.Once

	// touched only from the loop goroutine
	outbox []Command
	closed bool
}

func NewLoopSession(app AppFunc, loop *EventLoop, opts Options, logger *logrus.Logger) *LoopSession {
	opts = opts.withDefaults()
	s := &LoopSession{
		logger: logger,
		loop:   loop,
		events: make(chan Event, opts.EventBufferSize),
		quit:   make(chan struct{}),
	}
	go s.run(app)
	return s
}

func (s *LoopSession) run(app AppFunc) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("session application panicked")
		}
		s.finish()
	}()
	app(&IO{send: s.sendCommand, next: s.nextEvent})
}

func (s *LoopSession) finish() {
	_ = s.loop.Do(func() {
		if s.closed {
			return
		}
		s.outbox = append(s.outbox, CloseSessionCommand())
		s.closed = true
	})
}

func (s *LoopSession) sendCommand(cmd Command) {
	_ = s.loop.Do(func() {
		if s.closed {
			return
		}
		s.outbox = append(s.outbox, cmd)
	})
}

func (s *LoopSession) nextEvent(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.quit:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Push hands the event over without blocking the loop: a saturated buffer
// fails immediately with ErrPushTimeout rather than stalling every session
// sharing the loop.
func (s *LoopSession) Push(ctx context.Context, ev Event) error {
	var pushErr error
	err := s.loop.Do(func() {
		if s.closed {
			pushErr = ErrSessionClosed
			return
		}
		select {
		case s.events <- ev:
		default:
			pushErr = ErrPushTimeout
		}
	})
	if err != nil {
		return err
	}
	return pushErr
}

func (s *LoopSession) Pull() []Command {
	var out []Command
	if err := s.loop.Do(func() {
		out = s.outbox
		s.outbox = nil
	}); err != nil {
		return nil
	}
	return out
}

func (s *LoopSession) Closed() bool {
	closed := true
	_ = s.loop.Do(func() {
		closed = s.closed
	})
	return closed
}

func (s *LoopSession) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
}
