package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// WorkerSession runs the application function on a dedicated goroutine.
// Client events flow through a bounded channel; outbound commands accumulate
// in a mutex-guarded buffer until the next Pull.
type WorkerSession struct {
	logger      *logrus.Logger
	events      chan Event
	pushTimeout time.Duration

	quit      chan struct{} // closed by Close, stops the application
	closeOnce sync.Once

	mu     sync.Mutex
	outbox []Command
	closed bool
}

func NewWorkerSession(app AppFunc, opts Options, logger *logrus.Logger) *WorkerSession {
	opts = opts.withDefaults()
	s := &WorkerSession{
		logger:      logger,
		events:      make(chan Event, opts.EventBufferSize),
		pushTimeout: opts.PushTimeout,
		quit:        make(chan struct{}),
	}
	go s.run(app)
	return s
}

func (s *WorkerSession) run(app AppFunc) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("session application panicked")
		}
		s.finish()
	}()
	app(&IO{send: s.sendCommand, next: s.nextEvent})
}

// finish queues the terminal close_session command and flips the closed
// flag in one critical section, so a Pull that observes Closed()==true has
// already seen the closing command.
func (s *WorkerSession) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.outbox = append(s.outbox, CloseSessionCommand())
	s.closed = true
}

func (s *WorkerSession) sendCommand(cmd Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.outbox = append(s.outbox, cmd)
}

func (s *WorkerSession) nextEvent(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.quit:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *WorkerSession) Push(ctx context.Context, ev Event) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	timer := time.NewTimer(s.pushTimeout)
	defer timer.Stop()
	select {
	case s.events <- ev:
		return nil
	case <-s.quit:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPushTimeout
	}
}

func (s *WorkerSession) Pull() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.outbox
	s.outbox = nil
	return out
}

func (s *WorkerSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *WorkerSession) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
}
