package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iobridge/iobridge/pkg/session"
)

type fakeSession struct {
	mu         sync.Mutex
	pushed     []session.Event
	closed     bool
	closeCalls int
}

func (f *fakeSession) Push(ctx context.Context, ev session.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, ev)
	return nil
}

func (f *fakeSession) Pull() []session.Command { return nil }

func (f *fakeSession) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSession) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCalls++
}

func (f *fakeSession) CloseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

func fakeFactory() (session.Session, error) {
	return &fakeSession{}, nil
}

func testRegistry() *Registry {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(4*time.Hour, 2*time.Minute, logger)
}

func TestRegistry_CreateAssignsDistinctIdentifiers(t *testing.T) {
	r := testRegistry()

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		id, sess, err := r.Create(fakeFactory)
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.GreaterOrEqual(t, len(id), 24)
		for _, ch := range id {
			assert.Contains(t, tokenAlphabet, string(ch))
		}
		_, dup := seen[id]
		assert.False(t, dup, "identifier %q assigned twice", id)
		seen[id] = struct{}{}
	}
	assert.Equal(t, 50, r.Len())
}

func TestNewTokenUsesEveryAlphabetSymbol(t *testing.T) {
	seen := make(map[byte]struct{})
	for i := 0; i < 200; i++ {
		id, err := newToken()
		require.NoError(t, err)
		require.Len(t, id, tokenLength)
		for j := 0; j < len(id); j++ {
			seen[id[j]] = struct{}{}
		}
	}
	// 6400 uniform draws over 62 symbols leave every symbol represented
	assert.Len(t, seen, len(tokenAlphabet))
}

func TestRegistry_LookupUnknownIdentifier(t *testing.T) {
	r := testRegistry()

	sess, ok := r.Lookup("nope")
	assert.False(t, ok)
	assert.Nil(t, sess)
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := testRegistry()

	id, sess, err := r.Create(fakeFactory)
	require.NoError(t, err)

	r.Remove(id)
	r.Remove(id)

	assert.Equal(t, 0, r.Len())
	fake, ok := sess.(*fakeSession)
	require.True(t, ok)
	assert.Equal(t, 1, fake.CloseCalls())

	_, found := r.Lookup(id)
	assert.False(t, found)
}

func TestRegistry_EntryAndExpiryRecordArePaired(t *testing.T) {
	r := testRegistry()

	id, _, err := r.Create(fakeFactory)
	require.NoError(t, err)

	r.mu.Lock()
	assert.Equal(t, len(r.sessions), r.expiry.len())
	r.mu.Unlock()

	r.Remove(id)

	r.mu.Lock()
	assert.Equal(t, 0, len(r.sessions))
	assert.Equal(t, 0, r.expiry.len())
	r.mu.Unlock()
}

func TestRegistry_SweepEvictsExactlyTheExpiredPrefix(t *testing.T) {
	r := testRegistry()

	current := time.Unix(1000, 0)
	r.now = func() time.Time { return current }

	// last-active times t1 < t2 < t3, one hour apart
	var ids [3]string
	for i := range ids {
		id, _, err := r.Create(fakeFactory)
		require.NoError(t, err)
		ids[i] = id
		current = current.Add(time.Hour)
	}

	// ages at sweep time: 5.5h, 4.5h, 3.5h against a 4h budget
	current = time.Unix(1000, 0).Add(4*time.Hour + 90*time.Minute)
	r.Sweep()

	_, ok := r.Lookup(ids[0])
	assert.False(t, ok, "oldest session should be evicted")
	_, ok = r.Lookup(ids[1])
	assert.False(t, ok, "second session should be evicted")
	_, ok = r.Lookup(ids[2])
	assert.True(t, ok, "freshest session must survive")
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_LookupRefreshesExpiry(t *testing.T) {
	r := testRegistry()

	current := time.Unix(1000, 0)
	r.now = func() time.Time { return current }

	oldID, _, err := r.Create(fakeFactory)
	require.NoError(t, err)
	current = current.Add(time.Hour)
	freshID, _, err := r.Create(fakeFactory)
	require.NoError(t, err)

	// touching the old session moves it behind the fresh one
	current = current.Add(time.Hour)
	_, ok := r.Lookup(oldID)
	require.True(t, ok)

	// now the "fresh" session is the least recently active
	current = current.Add(4 * time.Hour)
	r.Sweep()

	_, ok = r.Lookup(freshID)
	assert.False(t, ok)
	_, ok = r.Lookup(oldID)
	assert.False(t, ok, "old session was last touched 4h ago, also expired")
}

func TestRegistry_SweepIfDueHonorsInterval(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	r := New(time.Minute, 2*time.Minute, logger)

	current := time.Unix(1000, 0)
	r.now = func() time.Time { return current }

	_, _, err := r.Create(fakeFactory)
	require.NoError(t, err)

	// 3m idle with a 1m budget and the interval elapsed: the sweep runs
	current = current.Add(3 * time.Minute)
	r.SweepIfDue()
	assert.Equal(t, 0, r.Len())

	id2, _, err := r.Create(fakeFactory)
	require.NoError(t, err)

	// 1m later the session is expired, but the sweep is not due yet
	current = current.Add(time.Minute)
	r.SweepIfDue()
	_, ok := r.Lookup(id2)
	assert.True(t, ok, "sweep must not run before the interval elapses")
}

func TestRegistry_ShutdownClosesEverything(t *testing.T) {
	r := testRegistry()

	_, s1, err := r.Create(fakeFactory)
	require.NoError(t, err)
	_, s2, err := r.Create(fakeFactory)
	require.NoError(t, err)

	r.Shutdown()

	assert.Equal(t, 0, r.Len())
	assert.True(t, s1.Closed())
	assert.True(t, s2.Closed())
}

func TestRegistry_ConcurrentCreateLookupRemove(t *testing.T) {
	r := testRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _, err := r.Create(fakeFactory)
			assert.NoError(t, err)
			_, ok := r.Lookup(id)
			assert.True(t, ok)
			r.SweepIfDue()
			r.Remove(id)
			r.Remove(id)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Len())
}
