package service

import "time"

// Write reasons reported to Observer.SessionWritten.
const (
	WriteChanged    = "changed"
	WritePassivated = "passivated"
	WriteFlush      = "flush"
)

// Session states reported to Observer.SessionExpired.
const (
	StateActive     = "active"
	StatePassivated = "passivated"
)

// Daemon names reported to Observer.ScanCompleted.
const (
	DaemonPersistence = "persistence"
	DaemonGC          = "gc"
)

// Storage operations reported to Observer.StorageFailure.
const (
	OpWrite  = "write"
	OpRead   = "read"
	OpRemove = "remove"
)

// Observer receives daemon activity. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	SessionWritten(reason string)
	SessionPassivated()
	SessionRecovered()
	CorruptFileRemoved()
	StorageFailure(op string)
	ScanCompleted(daemon string, resident int, elapsed time.Duration)
	SessionExpired(state string)
	CollectionSkipped()
}

type nopObserver struct{}

func (nopObserver) SessionWritten(string)                    {}
func (nopObserver) SessionPassivated()                       {}
func (nopObserver) SessionRecovered()                        {}
func (nopObserver) CorruptFileRemoved()                      {}
func (nopObserver) StorageFailure(string)                    {}
func (nopObserver) ScanCompleted(string, int, time.Duration) {}
func (nopObserver) SessionExpired(string)                    {}
func (nopObserver) CollectionSkipped()                       {}

// NopObserver returns an Observer that discards everything.
func NopObserver() Observer { return nopObserver{} }
