package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/internal/storage"
	"github.com/yndnr/sfsb-go/internal/storage/codec"
	"github.com/yndnr/sfsb-go/internal/storage/memory"
	"github.com/yndnr/sfsb-go/pkg/clock"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// noteBean is a minimal bean with one mutable field and one field that
// must never be snapshotted.
type noteBean struct {
	Text  string
	Count int
	wake  chan struct{}
}

func (b *noteBean) BeanType() string { return "note" }

func (b *noteBean) MarshalFields(w *bean.FieldWriter) {
	w.Put("text", b.Text)
	w.Put("count", b.Count)
	w.Put("wake", b.wake)
}

func (b *noteBean) UnmarshalFields(r *bean.FieldReader) error {
	r.Get("text", &b.Text)
	r.Get("count", &b.Count)
	return r.Err()
}

func testTypes() *bean.Types {
	types := bean.NewTypes()
	types.Register("note", func() bean.Bean { return &noteBean{} })
	return types
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingStore counts reads and writes per id and can fail chosen ids.
type countingStore struct {
	storage.Store

	mu       sync.Mutex
	writes   map[string]int
	reads    map[string]int
	failIDs  map[string]bool
	failRems map[string]bool
}

var errInjected = errors.New("injected failure")

func newCountingStore(inner storage.Store) *countingStore {
	return &countingStore{
		Store:    inner,
		writes:   make(map[string]int),
		reads:    make(map[string]int),
		failIDs:  make(map[string]bool),
		failRems: make(map[string]bool),
	}
}

func (s *countingStore) Write(id string, blob []byte) error {
	s.mu.Lock()
	fail := s.failIDs[id]
	if !fail {
		s.writes[id]++
	}
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.Store.Write(id, blob)
}

func (s *countingStore) Read(id string) ([]byte, error) {
	s.mu.Lock()
	s.reads[id]++
	s.mu.Unlock()
	return s.Store.Read(id)
}

func (s *countingStore) Reads(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[id]
}

func (s *countingStore) Remove(id string) error {
	s.mu.Lock()
	fail := s.failRems[id]
	s.mu.Unlock()
	if fail {
		return errInjected
	}
	return s.Store.Remove(id)
}

func (s *countingStore) Writes(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[id]
}

// destroyLog records destroy callbacks.
type destroyLog struct {
	mu  sync.Mutex
	ids []string
}

func (d *destroyLog) DestroyBeanInstance(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, id)
	return nil
}

func (d *destroyLog) Count(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, got := range d.ids {
		if got == id {
			n++
		}
	}
	return n
}

func (d *destroyLog) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ids)
}

type fixture struct {
	clk   *clock.FakeClock
	store *countingStore
	files *storage.FileStore
	s     *Sessions
	pm    *PersistenceManager
	gc    *GarbageCollector
	dead  *destroyLog
}

const (
	testInactivity = 5 * time.Second
	testMaxAge     = time.Minute
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithCodec(t, codec.New(codec.Options{}))
}

func newFixtureWithCodec(t *testing.T, c *codec.Codec) *fixture {
	t.Helper()
	clk := clock.Fake(t0)
	files, err := storage.NewFileStore(t.TempDir(), "sfsb_", storage.WithClock(clk), storage.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	store := newCountingStore(files)
	s := NewSessions(store, c, testTypes())
	dead := &destroyLog{}
	return &fixture{
		clk:   clk,
		store: store,
		files: files,
		s:     s,
		dead:  dead,
		pm: NewPersistenceManager(s, PersistenceConfig{
			Inactivity: testInactivity,
			Interval:   time.Second,
			MaximumAge: testMaxAge,
			Clock:      clk,
			Logger:     discardLogger(),
		}),
		gc: NewGarbageCollector(s, GCConfig{
			MaximumAge:  testMaxAge,
			Interval:    time.Second,
			Probability: 1,
			Destroyer:   dead,
			Clock:       clk,
			Logger:      discardLogger(),
		}),
	}
}

// add makes a note resident, created now and expiring after testMaxAge.
func (f *fixture) add(t *testing.T, id, text string) *memory.Entry {
	t.Helper()
	now := f.clk.Now()
	e := memory.NewEntry(id, &noteBean{Text: text}, now, now.Add(testMaxAge), now)
	if err := f.s.Registry.Add(e); err != nil {
		t.Fatalf("Registry.Add(%s): %v", id, err)
	}
	return e
}

// writeWrapper stores a frame for w directly, bypassing the daemon.
func (f *fixture) writeWrapper(t *testing.T, w *bean.Wrapper) {
	t.Helper()
	blob, err := f.s.Codec.Encode(w)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := f.files.Write(w.ID, blob); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func (f *fixture) stored(id string) bool {
	_, err := f.files.Stat(id)
	return err == nil
}
