package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/internal/core/domain"
	"github.com/yndnr/sfsb-go/internal/core/settings"
	"github.com/yndnr/sfsb-go/internal/storage"
	"github.com/yndnr/sfsb-go/internal/storage/codec"
	"github.com/yndnr/sfsb-go/internal/storage/memory"
	"github.com/yndnr/sfsb-go/pkg/clock"
	"github.com/yndnr/sfsb-go/pkg/crypto/adaptive"
)

// keyPurpose binds the derived file key to session storage.
const keyPurpose = "sfsb/session-file"

// Options configures a Container.
type Options struct {
	Settings settings.Settings
	Types    *bean.Types

	// Store overrides the backend chosen by Settings.Backend.
	Store storage.Store

	Destroyer Destroyer
	Observer  Observer
	Clock     clock.Clock
	Logger    *slog.Logger

	// Rand drives the collection probability. Defaults to math/rand/v2.
	Rand func() float64
}

// Stats is a point-in-time view of the container.
type Stats struct {
	Resident int  `json:"resident"`
	Indexed  int  `json:"indexed"`
	Stored   int  `json:"stored"`
	Running  bool `json:"running"`
}

// Container holds stateful session beans for the bean manager and runs
// the persistence and collection daemons over them.
type Container struct {
	settings settings.Settings
	s        *Sessions
	pm       *PersistenceManager
	gc       *GarbageCollector
	clock    clock.Clock
	logger   *slog.Logger
}

// New builds a container from opts. The store is opened from the
// settings unless opts.Store is set.
func New(opts Options) (*Container, error) {
	if opts.Types == nil {
		return nil, errors.New("service: bean types are required")
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver()
	}

	c, err := NewCodec(opts.Settings)
	if err != nil {
		return nil, err
	}
	store := opts.Store
	if store == nil {
		if store, err = OpenStore(opts.Settings, opts.Clock, opts.Logger); err != nil {
			return nil, err
		}
	}

	st := opts.Settings
	s := NewSessions(store, c, opts.Types)
	return &Container{
		settings: st,
		s:        s,
		pm: NewPersistenceManager(s, PersistenceConfig{
			Inactivity: st.Inactivity(),
			Interval:   st.PersistenceInterval,
			MaximumAge: st.MaximumAge(),
			Clock:      opts.Clock,
			Logger:     opts.Logger,
			Observer:   opts.Observer,
		}),
		gc: NewGarbageCollector(s, GCConfig{
			MaximumAge:  st.MaximumAge(),
			Interval:    st.GarbageCollectionInterval,
			Probability: st.GarbageCollectionProbability,
			RemovalRate: st.GCRemovalRate,
			Rand:        opts.Rand,
			Destroyer:   opts.Destroyer,
			Clock:       opts.Clock,
			Logger:      opts.Logger,
			Observer:    opts.Observer,
		}),
		clock:  opts.Clock,
		logger: opts.Logger.With("component", "container"),
	}, nil
}

// NewCodec builds the frame codec described by st.
func NewCodec(st settings.Settings) (*codec.Codec, error) {
	compression, err := st.CompressionTag()
	if err != nil {
		return nil, domain.ErrInvalidSettings.WithCause(err)
	}
	opts := codec.Options{Compression: compression}
	if st.Encrypted() {
		master, err := adaptive.ParseKey(st.EncryptionKey, keyPurpose)
		if err != nil {
			return nil, domain.ErrInvalidSettings.WithDetails("encryption_key").WithCause(err)
		}
		key, err := adaptive.DeriveSubkey(master, keyPurpose, adaptive.KeySize)
		if err != nil {
			return nil, domain.ErrInvalidSettings.WithDetails("encryption_key").WithCause(err)
		}
		if opts.Cipher, err = adaptive.NewWithType(key, adaptive.CipherType(st.Cipher)); err != nil {
			return nil, domain.ErrInvalidSettings.WithDetails("cipher").WithCause(err)
		}
	}
	return codec.New(opts), nil
}

// OpenStore opens the backend named by st.Backend under st.SessionSavePath.
func OpenStore(st settings.Settings, clk clock.Clock, logger *slog.Logger) (storage.Store, error) {
	switch st.Backend {
	case settings.BackendFile:
		return storage.NewFileStore(st.SessionSavePath, st.SessionFilePrefix,
			storage.WithClock(clk), storage.WithLogger(logger))
	case settings.BackendBadger:
		cfg := storage.DefaultBadgerConfig(filepath.Join(st.SessionSavePath, "badger"), st.SessionFilePrefix)
		cfg.Clock = clk
		cfg.Logger = logger
		return storage.NewBadgerStore(cfg)
	default:
		return nil, domain.ErrInvalidSettings.WithDetailsf("unknown backend %q", st.Backend)
	}
}

// NewSessionID returns a fresh, lexically sortable session id.
func NewSessionID() string {
	return ulid.Make().String()
}

// Start recovers stored sessions and starts both daemons.
func (c *Container) Start(ctx context.Context) (RecoveryStats, error) {
	st, err := c.pm.Initialize(ctx)
	if err != nil {
		return st, fmt.Errorf("recover sessions: %w", err)
	}
	c.pm.Start()
	c.gc.Start()
	c.logger.Info("session container started",
		"save_path", c.settings.SessionSavePath,
		"backend", c.settings.Backend,
		"recovered", st.Recovered)
	return st, nil
}

// Stop stops both daemons, flushes changed sessions when configured to,
// and closes the store.
func (c *Container) Stop(ctx context.Context) error {
	c.gc.Stop()
	c.pm.Stop()
	if c.settings.FlushOnStop {
		st := c.pm.Flush(ctx)
		c.logger.Info("sessions flushed", "written", st.Written, "failed", st.Failed)
	}
	if err := c.s.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	c.logger.Info("session container stopped")
	return nil
}

// Add makes b resident under id. Its maximum age counts from now.
func (c *Container) Add(id string, b bean.Bean) error {
	if err := storage.ValidateID(id); err != nil {
		return err
	}
	now := c.clock.Now()
	unlock := c.s.Locks.Lock(id)
	defer unlock()
	if _, err := c.s.Store.Stat(id); err == nil {
		return domain.ErrSessionExists.WithDetailsf("session %s is passivated", id)
	}
	return c.s.Registry.Add(memory.NewEntry(id, b, now, now.Add(c.settings.MaximumAge()), now))
}

// With runs fn with exclusive access to the bean of id, loading it from
// storage if it was passivated, and records the access as activity. It
// returns domain.ErrSessionNotFound for unknown ids.
func (c *Container) With(ctx context.Context, id string, fn func(b bean.Bean) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, ok := c.s.Registry.Get(id)
		if !ok {
			var err error
			if e, err = c.pm.Unpersist(ctx, id); err != nil {
				return err
			}
		}
		e.Lock()
		if e.Evicted() {
			// Passivated or destroyed since lookup.
			e.Unlock()
			continue
		}
		e.Touch(c.clock.Now())
		return func() error {
			defer e.Unlock()
			return fn(e.Bean())
		}()
	}
}

// Touch records activity on id without reading its bean.
func (c *Container) Touch(ctx context.Context, id string) error {
	return c.With(ctx, id, func(bean.Bean) error { return nil })
}

// Remove drops id from memory and storage without calling the destroyer.
func (c *Container) Remove(_ context.Context, id string) error {
	if err := storage.ValidateID(id); err != nil {
		return err
	}
	unlock := c.s.Locks.Lock(id)
	defer unlock()

	_, statErr := c.s.Store.Stat(id)
	stored := statErr == nil
	e, resident := c.s.Registry.Get(id)
	if !stored && !resident {
		if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
			return domain.ErrStorageRead.WithDetailsf("session %s", id).WithCause(statErr)
		}
		return domain.ErrSessionNotFound.WithDetailsf("session %s", id)
	}
	if err := c.s.Store.Remove(id); err != nil {
		return err
	}
	if resident {
		e.Lock()
		c.s.Registry.RemoveIf(id, e)
		e.MarkEvicted()
		e.Unlock()
	}
	c.s.Checksums.Delete(id)
	c.logger.Debug("session removed", "session_id", id)
	return nil
}

// Collect runs a collection pass immediately, regardless of probability.
func (c *Container) Collect(ctx context.Context) CollectStats {
	return c.gc.Collect(ctx)
}

// Flush writes every changed resident session without passivating any.
func (c *Container) Flush(ctx context.Context) PersistStats {
	return c.pm.Flush(ctx)
}

// Stats counts resident, indexed and stored sessions.
func (c *Container) Stats() Stats {
	st := Stats{
		Resident: c.s.Registry.Len(),
		Indexed:  c.s.Checksums.Len(),
		Running:  c.pm.Running() && c.gc.Running(),
	}
	for _, err := range c.s.Store.Entries() {
		if err == nil {
			st.Stored++
		}
	}
	return st
}

// Settings returns the settings the container was built with.
func (c *Container) Settings() settings.Settings { return c.settings }

// Persistence returns the persistence daemon.
func (c *Container) Persistence() *PersistenceManager { return c.pm }

// Collector returns the garbage collector.
func (c *Container) Collector() *GarbageCollector { return c.gc }

// Sessions returns the shared session state.
func (c *Container) Sessions() *Sessions { return c.s }
