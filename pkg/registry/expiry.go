package registry

import (
	"container/list"
	"time"
)

type expiryRecord struct {
	id         string
	lastActive time.Time
}

// expiryTracker keeps one record per live session, ordered by last activity
// (front = least recently active). Not safe for concurrent use; the Registry
// serializes access.
type expiryTracker struct {
	ll    *list.List
	index map[string]*list.Element
}

func newExpiryTracker() *expiryTracker {
	return &expiryTracker{
		ll:    list.New(),
		index: make(map[string]*list.Element),
	}
}

// touch inserts id or moves it to the most-recently-active end with a fresh
// timestamp.
func (t *expiryTracker) touch(id string, now time.Time) {
	if el, ok := t.index[id]; ok {
		rec, castOk := el.Value.(*expiryRecord)
		if castOk {
			rec.lastActive = now
		}
		t.ll.MoveToBack(el)
		return
	}
	t.index[id] = t.ll.PushBack(&expiryRecord{id: id, lastActive: now})
}

func (t *expiryTracker) remove(id string) {
	el, ok := t.index[id]
	if !ok {
		return
	}
	t.ll.Remove(el)
	delete(t.index, id)
}

func (t *expiryTracker) len() int {
	return t.ll.Len()
}

// evictExpired removes records idle for maxIdle or longer, front to back,
// stopping at the first fresh record: everything behind it is fresher still,
// which keeps the sweep O(k) in the number of newly expired sessions. evict
// is called for each removed id.
func (t *expiryTracker) evictExpired(now time.Time, maxIdle time.Duration, evict func(id string)) int {
	evicted := 0
	for {
		el := t.ll.Front()
		if el == nil {
			return evicted
		}
		rec, ok := el.Value.(*expiryRecord)
		if !ok {
			t.ll.Remove(el)
			continue
		}
		if now.Sub(rec.lastActive) < maxIdle {
			return evicted
		}
		t.ll.Remove(el)
		delete(t.index, rec.id)
		evict(rec.id)
		evicted++
	}
}
