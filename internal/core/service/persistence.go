package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/internal/core/domain"
	"github.com/yndnr/sfsb-go/internal/storage"
	"github.com/yndnr/sfsb-go/internal/storage/codec"
	"github.com/yndnr/sfsb-go/internal/storage/memory"
	"github.com/yndnr/sfsb-go/pkg/clock"
)

// Sessions is the state shared by the container and its daemons.
type Sessions struct {
	Registry  *memory.Registry
	Checksums *memory.ChecksumIndex
	Locks     *memory.KeyLocks
	Store     storage.Store
	Codec     *codec.Codec
	Types     *bean.Types
}

// NewSessions returns empty in-memory state over store.
func NewSessions(store storage.Store, c *codec.Codec, types *bean.Types) *Sessions {
	return &Sessions{
		Registry:  memory.NewRegistry(),
		Checksums: memory.NewChecksumIndex(),
		Locks:     &memory.KeyLocks{},
		Store:     store,
		Codec:     c,
		Types:     types,
	}
}

// PersistenceConfig configures a PersistenceManager.
type PersistenceConfig struct {
	// Inactivity is the idle time after which an unchanged session is
	// passivated. It is also the freshness window of startup recovery.
	Inactivity time.Duration
	Interval   time.Duration

	// MaximumAge dates sessions whose frame carries no expiry.
	MaximumAge time.Duration

	Clock    clock.Clock
	Logger   *slog.Logger
	Observer Observer
}

// PersistStats summarizes one persistence scan.
type PersistStats struct {
	Scanned    int
	Written    int
	Passivated int
	Failed     int
	Elapsed    time.Duration
}

// RecoveryStats summarizes startup recovery.
type RecoveryStats struct {
	Candidates int
	Recovered  int
	Corrupt    int
	Failed     int
	Elapsed    time.Duration
}

// PersistenceManager keeps storage in step with resident sessions.
//
// Each scan writes sessions whose checksum differs from the one last
// written and passivates unchanged sessions idle past the inactivity
// timeout, so I/O is proportional to the number of dirty sessions.
type PersistenceManager struct {
	s          *Sessions
	inactivity time.Duration
	maxAge     time.Duration
	clock      clock.Clock
	logger     *slog.Logger
	observer   Observer
	loop       *loop
}

// NewPersistenceManager returns a stopped PersistenceManager.
func NewPersistenceManager(s *Sessions, cfg PersistenceConfig) *PersistenceManager {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver()
	}
	pm := &PersistenceManager{
		s:          s,
		inactivity: cfg.Inactivity,
		maxAge:     cfg.MaximumAge,
		clock:      cfg.Clock,
		logger:     cfg.Logger.With("component", "persistence"),
		observer:   cfg.Observer,
	}
	pm.loop = &loop{
		name:     DaemonPersistence,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		logger:   pm.logger,
		run:      func(ctx context.Context) { pm.Persist(ctx) },
	}
	return pm
}

// Start runs Persist every interval in the background.
func (pm *PersistenceManager) Start() {
	pm.loop.start()
}

// Stop waits for an in-flight scan to finish and stops the daemon.
func (pm *PersistenceManager) Stop() {
	pm.loop.stop()
}

// Running reports whether the daemon loop is active.
func (pm *PersistenceManager) Running() bool {
	return pm.loop.running()
}

// Initialize reloads sessions whose storage entries were modified within
// the inactivity window. Entries that fail to decode are deleted; no
// single entry aborts recovery. The returned error is non-nil only when
// ctx is done.
func (pm *PersistenceManager) Initialize(ctx context.Context) (RecoveryStats, error) {
	start := pm.clock.Now()
	var st RecoveryStats

	for ent := range storage.Filter(pm.s.Store, pm.inactivity, pm.clock) {
		if err := ctx.Err(); err != nil {
			st.Elapsed = pm.clock.Now().Sub(start)
			return st, err
		}
		st.Candidates++

		unlock := pm.s.Locks.Lock(ent.ID)
		if pm.s.Registry.Has(ent.ID) {
			unlock()
			continue
		}
		_, err := pm.restore(ent.ID, ent.ModTime)
		unlock()

		switch {
		case err == nil:
			st.Recovered++
		case domain.IsCorrupt(err):
			st.Corrupt++
		default:
			st.Failed++
		}
	}

	st.Elapsed = pm.clock.Now().Sub(start)
	pm.logger.Info("session recovery completed",
		"candidates", st.Candidates,
		"recovered", st.Recovered,
		"corrupt", st.Corrupt,
		"failed", st.Failed,
		"elapsed", st.Elapsed)
	return st, nil
}

// Unpersist loads a passivated session back into the registry. It returns
// the resident entry when the session is already in memory.
//
// A missing or corrupt entry yields domain.ErrSessionNotFound; a corrupt
// one is deleted first. Cipher configuration errors are returned as is
// and leave the stored entry in place.
func (pm *PersistenceManager) Unpersist(ctx context.Context, id string) (*memory.Entry, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := pm.s.Locks.Lock(id)
	defer unlock()

	if e, ok := pm.s.Registry.Get(id); ok {
		return e, nil
	}
	e, err := pm.restore(id, pm.clock.Now())
	if err != nil {
		if domain.IsCorrupt(err) {
			return nil, domain.ErrSessionNotFound.WithDetailsf("session %s", id).WithCause(err)
		}
		return nil, err
	}
	return e, nil
}

// restore reads id from storage and makes it resident with the given
// last-touched time. The caller holds the key lock of id.
func (pm *PersistenceManager) restore(id string, touched time.Time) (*memory.Entry, error) {
	w, b, err := pm.load(id)
	if err != nil {
		switch {
		case domain.IsCorrupt(err):
			pm.removeCorrupt(id, err)
		case errors.Is(err, domain.ErrSessionNotFound):
		default:
			pm.logger.Error("failed to load session", "session_id", id, "error", err)
		}
		return nil, err
	}

	e := memory.NewEntry(id, b, w.CreatedAt, pm.expiry(id, w, touched), touched)
	actual, loaded := pm.s.Registry.LoadOrStore(e)
	if loaded {
		return actual, nil
	}
	pm.s.Checksums.Set(id, bean.Checksum(w))
	pm.observer.SessionRecovered()
	pm.logger.Debug("session recovered", "session_id", id, "type", w.Type)
	return e, nil
}

// expiry returns the absolute expiry of a loaded session. Frames without
// one are aged from their creation time, or failing that from the
// storage modification time, as the collector does for stored entries.
func (pm *PersistenceManager) expiry(id string, w *bean.Wrapper, touched time.Time) time.Time {
	if !w.ExpiresAt.IsZero() || pm.maxAge <= 0 {
		return w.ExpiresAt
	}
	base := w.CreatedAt
	if base.IsZero() {
		base = touched
		if ent, err := pm.s.Store.Stat(id); err == nil {
			base = ent.ModTime
		}
	}
	return base.Add(pm.maxAge)
}

// load reads and decodes id without touching memory state.
func (pm *PersistenceManager) load(id string) (*bean.Wrapper, bean.Bean, error) {
	blob, err := pm.s.Store.Read(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, domain.ErrSessionNotFound.WithDetailsf("session %s", id)
		}
		pm.observer.StorageFailure(OpRead)
		if !errors.Is(err, domain.ErrStorageRead) {
			err = domain.ErrStorageRead.WithDetailsf("session %s", id).WithCause(err)
		}
		return nil, nil, err
	}
	w, err := pm.s.Codec.Decode(blob)
	if err != nil {
		return nil, nil, err
	}
	if w.ID != id {
		return nil, nil, domain.ErrCorruptEncoding.WithDetailsf("entry %s holds session %s", id, w.ID)
	}
	b, err := bean.Reconstruct(pm.s.Types, w)
	if err != nil {
		return nil, nil, err
	}
	return w, b, nil
}

func (pm *PersistenceManager) removeCorrupt(id string, cause error) {
	if err := pm.s.Store.Remove(id); err != nil {
		pm.observer.StorageFailure(OpRemove)
		pm.logger.Error("failed to remove corrupt session", "session_id", id, "error", err)
		return
	}
	pm.observer.CorruptFileRemoved()
	pm.logger.Warn("corrupt session removed", "session_id", id, "error", cause)
}

// Persist runs one scan over the resident sessions.
func (pm *PersistenceManager) Persist(ctx context.Context) PersistStats {
	return pm.scan(ctx, true)
}

// Flush writes every changed resident session without passivating any.
func (pm *PersistenceManager) Flush(ctx context.Context) PersistStats {
	return pm.scan(ctx, false)
}

func (pm *PersistenceManager) scan(ctx context.Context, passivate bool) PersistStats {
	start := pm.clock.Now()
	var st PersistStats

	for _, id := range pm.s.Registry.Keys() {
		if ctx.Err() != nil {
			break
		}
		st.Scanned++
		switch pm.persistOne(id, passivate) {
		case outcomeWritten:
			st.Written++
		case outcomePassivated:
			st.Passivated++
		case outcomeFailed:
			st.Failed++
		}
	}

	st.Elapsed = pm.clock.Now().Sub(start)
	pm.observer.ScanCompleted(DaemonPersistence, pm.s.Registry.Len(), st.Elapsed)
	if st.Written+st.Passivated+st.Failed > 0 {
		pm.logger.Info("persistence scan completed",
			"scanned", st.Scanned, "written", st.Written,
			"passivated", st.Passivated, "failed", st.Failed,
			"elapsed", st.Elapsed)
	} else {
		pm.logger.Debug("persistence scan completed", "scanned", st.Scanned, "elapsed", st.Elapsed)
	}
	return st
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeWritten
	outcomePassivated
	outcomeFailed
)

func (pm *PersistenceManager) persistOne(id string, passivate bool) outcome {
	unlock := pm.s.Locks.Lock(id)
	defer unlock()

	e, ok := pm.s.Registry.Get(id)
	if !ok {
		return outcomeSkipped
	}
	e.Lock()
	defer e.Unlock()
	if e.Evicted() {
		return outcomeSkipped
	}

	w, skipped := bean.Snapshot(e.ID, e.CreatedAt, e.ExpiresAt, e.Bean())
	sum := bean.Checksum(w)
	old, written := pm.s.Checksums.Get(id)
	changed := !written || old != sum
	idle := passivate && e.IdleFor(pm.clock.Now()) >= pm.inactivity

	if !changed && !idle {
		return outcomeSkipped
	}
	if len(skipped) > 0 {
		pm.logger.Debug("fields omitted from snapshot", "session_id", id, "fields", skipped)
	}

	if err := pm.write(w); err != nil {
		pm.logger.Error("failed to write session", "session_id", id, "error", err)
		return outcomeFailed
	}

	if changed {
		pm.s.Checksums.Set(id, sum)
		reason := WriteChanged
		if !passivate {
			reason = WriteFlush
		}
		pm.observer.SessionWritten(reason)
		return outcomeWritten
	}

	pm.s.Registry.RemoveIf(id, e)
	pm.s.Checksums.Delete(id)
	e.MarkEvicted()
	pm.observer.SessionWritten(WritePassivated)
	pm.observer.SessionPassivated()
	pm.logger.Debug("session passivated", "session_id", id, "idle", e.IdleFor(pm.clock.Now()))
	return outcomePassivated
}

func (pm *PersistenceManager) write(w *bean.Wrapper) error {
	blob, err := pm.s.Codec.Encode(w)
	if err != nil {
		return domain.ErrStorageWrite.WithDetailsf("encode session %s", w.ID).WithCause(err)
	}
	if err := pm.s.Store.Write(w.ID, blob); err != nil {
		pm.observer.StorageFailure(OpWrite)
		return domain.ErrStorageWrite.WithDetailsf("session %s", w.ID).WithCause(err)
	}
	return nil
}
