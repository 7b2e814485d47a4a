package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/sfsb-go/internal/core/domain"
	"github.com/yndnr/sfsb-go/pkg/clock"
)

// mtimeSize prefixes every Badger value with the write time in unix nanos.
const mtimeSize = 8

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	Dir    string
	Prefix string

	// InMemory keeps the database in memory only. Dir is ignored.
	InMemory bool

	// SyncWrites fsyncs every write. Default true.
	SyncWrites bool

	// GCInterval is the period of value log garbage collection.
	GCInterval time.Duration

	// GCDiscardRatio is passed to RunValueLogGC.
	GCDiscardRatio float64

	Clock  clock.Clock
	Logger *slog.Logger
}

// DefaultBadgerConfig returns the configuration used for a session dir.
func DefaultBadgerConfig(dir, prefix string) BadgerConfig {
	return BadgerConfig{
		Dir:            dir,
		Prefix:         prefix,
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// BadgerStore stores session blobs in an embedded Badger database.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	clock  clock.Clock
	logger *slog.Logger

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewBadgerStore opens the database and starts its value log GC loop.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, errors.New("badger: dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio >= 1 {
		cfg.GCDiscardRatio = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: cfg.Logger}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go s.gcLoop()

	s.logger.Info("badger session store opened", "dir", cfg.Dir, "in_memory", cfg.InMemory)
	return s, nil
}

func (s *BadgerStore) key(id string) []byte {
	return []byte(s.cfg.Prefix + id)
}

// Write stores blob in a single transaction.
func (s *BadgerStore) Write(id string, blob []byte) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	value := make([]byte, mtimeSize+len(blob))
	binary.BigEndian.PutUint64(value, uint64(s.clock.Now().UnixNano()))
	copy(value[mtimeSize:], blob)

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(id), value)
	})
	if err != nil {
		return domain.ErrStorageWrite.WithDetailsf("session %s", id).WithCause(err)
	}
	return nil
}

// Read returns the blob for id.
func (s *BadgerStore) Read(id string) ([]byte, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(id))
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(value) < mtimeSize {
			// Too short to carry a timestamp: hand the bytes to the codec,
			// which reports them as corrupt.
			blob = value
			return nil
		}
		blob = value[mtimeSize:]
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("session %s: %w", id, fs.ErrNotExist)
		}
		return nil, domain.ErrStorageRead.WithDetailsf("session %s", id).WithCause(err)
	}
	return blob, nil
}

// Remove deletes the entry for id.
func (s *BadgerStore) Remove(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(id))
	})
	if err != nil {
		return domain.ErrStorageDelete.WithDetailsf("session %s", id).WithCause(err)
	}
	return nil
}

// Stat describes the entry for id.
func (s *BadgerStore) Stat(id string) (Entry, error) {
	if err := ValidateID(id); err != nil {
		return Entry{}, err
	}
	var e Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(id))
		if err != nil {
			return err
		}
		e, err = s.entry(item)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, fmt.Errorf("session %s: %w", id, fs.ErrNotExist)
	}
	return e, err
}

func (s *BadgerStore) entry(item *badger.Item) (Entry, error) {
	key := string(item.Key())
	e := Entry{ID: key[len(s.cfg.Prefix):], Path: "badger:" + key}
	err := item.Value(func(v []byte) error {
		if len(v) >= mtimeSize {
			e.ModTime = time.Unix(0, int64(binary.BigEndian.Uint64(v)))
			e.Size = int64(len(v) - mtimeSize)
		} else {
			e.Size = int64(len(v))
		}
		return nil
	})
	return e, err
}

// Entries lists every <prefix>* key. Metadata is collected inside one
// read transaction and yielded after it closes, so callers may write to
// the store while ranging.
func (s *BadgerStore) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		var entries []Entry
		var itemErrs []error
		err := s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(s.cfg.Prefix)
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				if len(item.Key()) == len(s.cfg.Prefix) {
					continue
				}
				e, err := s.entry(item)
				if err != nil {
					itemErrs = append(itemErrs, fmt.Errorf("badger: entry %q: %w", item.Key(), err))
					continue
				}
				entries = append(entries, e)
			}
			return nil
		})
		if err != nil {
			yield(Entry{}, fmt.Errorf("badger: scan: %w", err))
			return
		}
		for _, err := range itemErrs {
			if !yield(Entry{}, err) {
				return
			}
		}
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// RunGC runs value log garbage collection until nothing is rewritten.
func (s *BadgerStore) RunGC() error {
	if s.cfg.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(s.cfg.GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("badger: value log gc: %w", err)
		}
	}
}

func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	ticker := s.clock.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.RunGC(); err != nil {
				s.logger.Error("badger value log gc failed", "error", err)
			}
			s.updateMetrics()
		case <-s.stopCh:
			return
		}
	}
}

// RegisterMetrics exposes database size gauges on reg.
func (s *BadgerStore) RegisterMetrics(reg prometheus.Registerer) {
	s.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sfsb",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes.",
	})
	s.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sfsb",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes.",
	})
	reg.MustRegister(s.metricsLSMSize, s.metricsValueLogSize)
	s.updateMetrics()
}

func (s *BadgerStore) updateMetrics() {
	if s.metricsLSMSize == nil {
		return
	}
	lsm, vlog := s.db.Size()
	s.metricsLSMSize.Set(float64(lsm))
	s.metricsValueLogSize.Set(float64(vlog))
}

// Close stops the GC loop and closes the database.
func (s *BadgerStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		if cerr := s.db.Close(); cerr != nil {
			err = fmt.Errorf("badger: close db: %w", cerr)
		}
	})
	return err
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
