package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/sfsb-go/internal/core/bean"
)

// Entry is one resident session.
//
// The bean and the evicted flag are guarded by the entry lock. Foreground
// code mutates the bean only while holding it, and the persistence daemon
// takes it to snapshot, so a snapshot never observes a half-applied
// change. lastTouched is atomic and may be refreshed without the lock.
type Entry struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time

	mu          sync.Mutex
	bean        bean.Bean
	evicted     bool
	lastTouched atomic.Int64
}

// NewEntry returns an entry last touched at touched.
func NewEntry(id string, b bean.Bean, createdAt, expiresAt, touched time.Time) *Entry {
	e := &Entry{ID: id, CreatedAt: createdAt, ExpiresAt: expiresAt, bean: b}
	e.lastTouched.Store(touched.UnixNano())
	return e
}

// Lock acquires the entry lock.
func (e *Entry) Lock() { e.mu.Lock() }

// Unlock releases the entry lock.
func (e *Entry) Unlock() { e.mu.Unlock() }

// Bean returns the live bean. The caller must hold the entry lock.
func (e *Entry) Bean() bean.Bean { return e.bean }

// Evicted reports whether the entry has left the registry, through
// passivation or destruction. Holders of an evicted entry must resolve
// the id again. The caller must hold the entry lock.
func (e *Entry) Evicted() bool { return e.evicted }

// MarkEvicted flags the entry as no longer resident. The caller must
// hold the entry lock.
func (e *Entry) MarkEvicted() { e.evicted = true }

// Touch records foreground activity at t.
func (e *Entry) Touch(t time.Time) { e.lastTouched.Store(t.UnixNano()) }

// LastTouched returns the time of the last recorded activity.
func (e *Entry) LastTouched() time.Time { return time.Unix(0, e.lastTouched.Load()) }

// IdleFor returns how long the entry has been idle at now.
func (e *Entry) IdleFor(now time.Time) time.Duration { return now.Sub(e.LastTouched()) }

// Expired reports whether the session has outlived its maximum age. An
// entry without an expiry never expires.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}
