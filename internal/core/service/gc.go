package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/sfsb-go/internal/storage"
	"github.com/yndnr/sfsb-go/internal/storage/memory"
	"github.com/yndnr/sfsb-go/pkg/clock"
)

// Destroyer is the bean manager callback invoked once for every session
// the collector destroys.
type Destroyer interface {
	DestroyBeanInstance(ctx context.Context, id string) error
}

// DestroyerFunc adapts a function to Destroyer.
type DestroyerFunc func(ctx context.Context, id string) error

// DestroyBeanInstance calls f.
func (f DestroyerFunc) DestroyBeanInstance(ctx context.Context, id string) error {
	return f(ctx, id)
}

// GCConfig configures a GarbageCollector.
type GCConfig struct {
	// MaximumAge bounds the lifetime of stored sessions whose frame
	// carries no expiry.
	MaximumAge time.Duration
	Interval   time.Duration

	// Probability is the chance that a tick runs a collection pass.
	Probability float64

	// RemovalRate caps removals per second within a pass.
	RemovalRate float64

	// Rand returns values in [0,1). Defaults to math/rand/v2.
	Rand func() float64

	Destroyer Destroyer
	Clock     clock.Clock
	Logger    *slog.Logger
	Observer  Observer
}

// CollectStats summarizes one collection pass.
type CollectStats struct {
	Resident int
	Stored   int
	Expired  int
	Corrupt  int
	Failed   int
	Elapsed  time.Duration
}

// GarbageCollector destroys sessions that outlived their maximum age,
// whether resident or passivated.
type GarbageCollector struct {
	s           *Sessions
	maxAge      time.Duration
	probability float64
	rand        func() float64
	limiter     *rate.Limiter
	destroyer   Destroyer
	clock       clock.Clock
	logger      *slog.Logger
	observer    Observer
	loop        *loop
}

// NewGarbageCollector returns a stopped GarbageCollector.
func NewGarbageCollector(s *Sessions, cfg GCConfig) *GarbageCollector {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Float64
	}
	if cfg.Destroyer == nil {
		cfg.Destroyer = DestroyerFunc(func(context.Context, string) error { return nil })
	}
	limit := rate.Inf
	if cfg.RemovalRate > 0 {
		limit = rate.Limit(cfg.RemovalRate)
	}

	gc := &GarbageCollector{
		s:           s,
		maxAge:      cfg.MaximumAge,
		probability: cfg.Probability,
		rand:        cfg.Rand,
		limiter:     rate.NewLimiter(limit, 1),
		destroyer:   cfg.Destroyer,
		clock:       cfg.Clock,
		logger:      cfg.Logger.With("component", "gc"),
		observer:    cfg.Observer,
	}
	gc.loop = &loop{
		name:     DaemonGC,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		logger:   gc.logger,
		run:      func(ctx context.Context) { gc.Tick(ctx) },
	}
	return gc
}

// Start runs Tick every interval in the background.
func (gc *GarbageCollector) Start() {
	gc.loop.start()
}

// Stop waits for an in-flight pass to finish and stops the daemon.
func (gc *GarbageCollector) Stop() {
	gc.loop.stop()
}

// Running reports whether the daemon loop is active.
func (gc *GarbageCollector) Running() bool {
	return gc.loop.running()
}

// Tick runs a collection pass with the configured probability. ran
// reports whether the pass executed.
func (gc *GarbageCollector) Tick(ctx context.Context) (st CollectStats, ran bool) {
	if gc.probability < 1 && !(gc.rand() < gc.probability) {
		gc.observer.CollectionSkipped()
		return CollectStats{}, false
	}
	return gc.Collect(ctx), true
}

// Collect runs a collection pass unconditionally: resident sessions
// first, then stored sessions that are not resident. Stored entries that
// cannot be decoded are deleted without calling the destroyer.
func (gc *GarbageCollector) Collect(ctx context.Context) CollectStats {
	start := gc.clock.Now()
	var st CollectStats

	for _, id := range gc.s.Registry.Keys() {
		if ctx.Err() != nil {
			break
		}
		e, ok := gc.s.Registry.Get(id)
		if !ok {
			continue
		}
		st.Resident++
		if !e.Expired(gc.clock.Now()) {
			continue
		}
		if err := gc.limiter.Wait(ctx); err != nil {
			break
		}
		gc.tally(&st, gc.collectResident(ctx, id, e))
	}

	for ent, err := range gc.s.Store.Entries() {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			gc.logger.Warn("failed to list stored session", "session_id", ent.ID, "error", err)
			continue
		}
		if gc.s.Registry.Has(ent.ID) {
			continue
		}
		st.Stored++
		v := gc.inspect(ent)
		switch v {
		case verdictKeep:
			continue
		case verdictFailed:
			gc.tally(&st, v)
			continue
		}
		if err := gc.limiter.Wait(ctx); err != nil {
			break
		}
		gc.tally(&st, gc.collectStored(ctx, ent, v))
	}

	st.Elapsed = gc.clock.Now().Sub(start)
	gc.observer.ScanCompleted(DaemonGC, gc.s.Registry.Len(), st.Elapsed)
	if st.Expired+st.Corrupt+st.Failed > 0 {
		gc.logger.Info("collection pass completed",
			"resident", st.Resident, "stored", st.Stored,
			"expired", st.Expired, "corrupt", st.Corrupt, "failed", st.Failed,
			"elapsed", st.Elapsed)
	} else {
		gc.logger.Debug("collection pass completed",
			"resident", st.Resident, "stored", st.Stored, "elapsed", st.Elapsed)
	}
	return st
}

type verdict int

const (
	verdictKeep verdict = iota
	verdictExpired
	verdictCorrupt
	verdictFailed
)

func (gc *GarbageCollector) tally(st *CollectStats, v verdict) {
	switch v {
	case verdictExpired:
		st.Expired++
	case verdictCorrupt:
		st.Corrupt++
	case verdictFailed:
		st.Failed++
	}
}

func (gc *GarbageCollector) collectResident(ctx context.Context, id string, e *memory.Entry) verdict {
	unlock := gc.s.Locks.Lock(id)
	e.Lock()
	if e.Evicted() {
		e.Unlock()
		unlock()
		return verdictKeep
	}
	// The file goes first: if it cannot be removed the session stays
	// resident and is retried on the next pass.
	if err := gc.s.Store.Remove(id); err != nil {
		e.Unlock()
		unlock()
		gc.observer.StorageFailure(OpRemove)
		gc.logger.Error("failed to remove expired session", "session_id", id, "error", err)
		return verdictFailed
	}
	gc.s.Registry.RemoveIf(id, e)
	gc.s.Checksums.Delete(id)
	e.MarkEvicted()
	e.Unlock()
	unlock()

	gc.destroy(ctx, id, StateActive)
	return verdictExpired
}

// inspect classifies a stored entry from its frame header.
func (gc *GarbageCollector) inspect(ent storage.Entry) verdict {
	blob, err := gc.s.Store.Read(ent.ID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return verdictKeep
		}
		gc.observer.StorageFailure(OpRead)
		gc.logger.Error("failed to read stored session", "session_id", ent.ID, "error", err)
		return verdictFailed
	}
	hdr, err := gc.s.Codec.DecodeHeader(blob)
	if err != nil {
		return verdictCorrupt
	}
	expiresAt := hdr.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = ent.ModTime.Add(gc.maxAge)
	}
	if gc.clock.Now().After(expiresAt) {
		return verdictExpired
	}
	return verdictKeep
}

// collectStored removes a stored entry inspection judged expired or
// corrupt. The entry is only read again when it changed since then.
func (gc *GarbageCollector) collectStored(ctx context.Context, ent storage.Entry, v verdict) verdict {
	unlock := gc.s.Locks.Lock(ent.ID)
	if gc.s.Registry.Has(ent.ID) {
		unlock()
		return verdictKeep
	}
	cur, err := gc.s.Store.Stat(ent.ID)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		unlock()
		return verdictKeep
	case err != nil:
		unlock()
		gc.observer.StorageFailure(OpRead)
		gc.logger.Error("failed to stat stored session", "session_id", ent.ID, "error", err)
		return verdictFailed
	}
	if !cur.ModTime.Equal(ent.ModTime) || cur.Size != ent.Size {
		if v = gc.inspect(cur); v == verdictKeep || v == verdictFailed {
			unlock()
			return v
		}
	}
	if err := gc.s.Store.Remove(ent.ID); err != nil {
		unlock()
		gc.observer.StorageFailure(OpRemove)
		gc.logger.Error("failed to remove stored session", "session_id", ent.ID, "error", err)
		return verdictFailed
	}
	unlock()

	if v == verdictCorrupt {
		gc.observer.CorruptFileRemoved()
		gc.logger.Warn("corrupt session removed", "session_id", ent.ID)
		return verdictCorrupt
	}
	gc.destroy(ctx, ent.ID, StatePassivated)
	return verdictExpired
}

func (gc *GarbageCollector) destroy(ctx context.Context, id, state string) {
	gc.observer.SessionExpired(state)
	gc.logger.Debug("session expired", "session_id", id, "state", state)
	if err := gc.destroyer.DestroyBeanInstance(ctx, id); err != nil {
		gc.logger.Error("destroy callback failed", "session_id", id, "error", err)
	}
}
