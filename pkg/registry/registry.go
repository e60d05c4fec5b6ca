package registry

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iobridge/iobridge/pkg/infra/prometheus"
	"github.com/iobridge/iobridge/pkg/session"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	tokenLength   = 32
)

// Registry owns the id → Session mapping and the expiry tracker. Both live
// behind one mutex so a registry entry and its expiry record are always
// created and removed as a pair.
type Registry struct {
	logger        *logrus.Logger
	expireAfter   time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	mu        sync.Mutex
	sessions  map[string]session.Session
	expiry    *expiryTracker
	lastSweep time.Time
}

func New(expireAfter, sweepInterval time.Duration, logger *logrus.Logger) *Registry {
	return &Registry{
		logger:        logger,
		expireAfter:   expireAfter,
		sweepInterval: sweepInterval,
		now:           time.Now,
		sessions:      make(map[string]session.Session),
		expiry:        newExpiryTracker(),
	}
}

// Create builds a session via factory, assigns it a fresh identifier and
// seeds its expiry record. Identifier entropy makes collisions negligible;
// the containment loop below is a cheap guard rather than a guarantee we
// rely on.
func (r *Registry) Create(factory session.Factory) (string, session.Session, error) {
	sess, err := factory()
	if err != nil {
		return "", nil, fmt.Errorf("session factory: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	for {
		id, err = newToken()
		if err != nil {
			sess.Close()
			return "", nil, fmt.Errorf("generate session id: %w", err)
		}
		if _, exists := r.sessions[id]; !exists {
			break
		}
	}

	r.sessions[id] = sess
	r.expiry.touch(id, r.now())

	prometheus.SessionsCreated.Inc()
	prometheus.ActiveSessions.Set(float64(len(r.sessions)))
	r.logger.WithField("session_id", id).Debug("session created")
	return id, sess, nil
}

// Lookup returns the live session for id and refreshes its expiry record.
func (r *Registry) Lookup(id string) (session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	r.expiry.touch(id, r.now())
	return sess, true
}

// Remove drops the session and its expiry record together. Idempotent: the
// sweep and the per-request close detection may race to remove the same id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) {
	sess, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	r.expiry.remove(id)
	sess.Close()

	prometheus.SessionsClosed.Inc()
	prometheus.ActiveSessions.Set(float64(len(r.sessions)))
	r.logger.WithField("session_id", id).Debug("session removed")
}

// SweepIfDue evicts idle sessions when at least the sweep interval has
// elapsed since the previous sweep. Callers invoke it opportunistically on
// incoming requests; there is no background timer.
func (r *Registry) SweepIfDue() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if now.Sub(r.lastSweep) < r.sweepInterval {
		return
	}
	r.lastSweep = now
	r.sweepLocked(now)
}

// Sweep evicts idle sessions unconditionally.
func (r *Registry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(r.now())
}

func (r *Registry) sweepLocked(now time.Time) {
	evicted := r.expiry.evictExpired(now, r.expireAfter, func(id string) {
		sess, ok := r.sessions[id]
		if !ok {
			return
		}
		delete(r.sessions, id)
		sess.Close()
	})
	if evicted > 0 {
		prometheus.SessionsEvicted.Add(float64(evicted))
		prometheus.ActiveSessions.Set(float64(len(r.sessions)))
		r.logger.WithFields(logrus.Fields{
			"evicted":   evicted,
			"remaining": len(r.sessions),
		}).Info("expired sessions evicted")
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown closes every live session, used on server teardown.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sess := range r.sessions {
		sess.Close()
		delete(r.sessions, id)
		r.expiry.remove(id)
	}
	prometheus.ActiveSessions.Set(0)
}

// newToken draws identifier characters by rejection sampling so every
// alphabet symbol is equally likely.
func newToken() (string, error) {
	out := make([]byte, 0, tokenLength)
	buf := make([]byte, 2*tokenLength)
	for {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			idx := int(b & 0x3F)
			if idx >= len(tokenAlphabet) {
				continue
			}
			out = append(out, tokenAlphabet[idx])
			if len(out) == tokenLength {
				return string(out), nil
			}
		}
	}
}
