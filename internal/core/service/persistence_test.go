package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/internal/core/domain"
	"github.com/yndnr/sfsb-go/internal/storage/codec"
	"github.com/yndnr/sfsb-go/pkg/crypto/adaptive"
)

func TestPersist_WritesOnlyWhenChanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "abc", "hello")

	st := f.pm.Persist(ctx)
	if st.Written != 1 {
		t.Fatalf("first scan Written = %d, want 1", st.Written)
	}
	if _, ok := f.s.Checksums.Get("abc"); !ok {
		t.Fatal("checksum not recorded after first write")
	}

	for i := 0; i < 4; i++ {
		f.clk.Advance(time.Second)
		if st := f.pm.Persist(ctx); st.Written != 0 || st.Passivated != 0 {
			t.Fatalf("scan %d: %+v, want no work", i, st)
		}
	}
	if n := f.store.Writes("abc"); n != 1 {
		t.Errorf("Writes(abc) = %d, want 1", n)
	}
	if !f.s.Registry.Has("abc") {
		t.Error("fresh session left the registry")
	}
}

func TestPersist_RewritesChangedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.add(t, "abc", "v1")
	f.pm.Persist(ctx)
	before, _ := f.s.Checksums.Get("abc")

	e.Lock()
	e.Bean().(*noteBean).Text = "v2"
	e.Unlock()

	if st := f.pm.Persist(ctx); st.Written != 1 {
		t.Fatalf("Written = %d, want 1", st.Written)
	}
	after, _ := f.s.Checksums.Get("abc")
	if before == after {
		t.Error("checksum unchanged after rewrite")
	}
	if n := f.store.Writes("abc"); n != 2 {
		t.Errorf("Writes(abc) = %d, want 2", n)
	}
}

// Session "abc" with a 5s inactivity timeout: written on the first tick,
// passivated once idle, and still decodable from storage.
func TestPersist_IdlePassivation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.add(t, "abc", "cart")

	f.pm.Persist(ctx)
	path := filepath.Join(f.files.Dir(), "sfsb_abc")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("sfsb_abc not written: %v", err)
	}
	if !f.s.Registry.Has("abc") {
		t.Fatal("session left the registry after first tick")
	}

	f.clk.Advance(6 * time.Second)
	st := f.pm.Persist(ctx)
	if st.Passivated != 1 {
		t.Fatalf("Passivated = %d, want 1", st.Passivated)
	}
	if f.s.Registry.Has("abc") {
		t.Error("idle session still resident")
	}
	if _, ok := f.s.Checksums.Get("abc"); ok {
		t.Error("checksum kept for passivated session")
	}
	e.Lock()
	evicted := e.Evicted()
	e.Unlock()
	if !evicted {
		t.Error("passivated entry not marked evicted")
	}

	blob, err := f.files.Read("abc")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got, err := f.s.Codec.Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want, _ := bean.Snapshot("abc", e.CreatedAt, e.ExpiresAt, &noteBean{Text: "cart"})
	if !got.Equal(want) {
		t.Errorf("stored snapshot = %+v, want %+v", got, want)
	}
}

func TestPersist_ChangedIdleSessionStaysUntilWritten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.add(t, "abc", "v1")
	f.pm.Persist(ctx)

	f.clk.Advance(time.Minute / 2)
	e.Lock()
	e.Bean().(*noteBean).Count = 7
	e.Unlock()

	if st := f.pm.Persist(ctx); st.Written != 1 || st.Passivated != 0 {
		t.Fatalf("changed idle scan = %+v, want one write", st)
	}
	if !f.s.Registry.Has("abc") {
		t.Fatal("changed session passivated before its write was recorded")
	}
	if st := f.pm.Persist(ctx); st.Passivated != 1 {
		t.Fatalf("next scan Passivated = %d, want 1", st.Passivated)
	}
}

func TestPersist_WriteFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "bad", "x")
	f.add(t, "good", "y")
	f.store.failIDs["bad"] = true

	st := f.pm.Persist(ctx)
	if st.Failed != 1 || st.Written != 1 {
		t.Fatalf("scan = %+v, want one failure and one write", st)
	}
	if _, ok := f.s.Checksums.Get("bad"); ok {
		t.Error("checksum recorded for a failed write")
	}

	f.clk.Advance(10 * time.Second)
	f.pm.Persist(ctx)
	if !f.s.Registry.Has("bad") {
		t.Error("session with failing writes was evicted")
	}
	if f.s.Registry.Has("good") {
		t.Error("idle session with a good write was not passivated")
	}
}

func TestPersist_FlushNeverPassivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "abc", "x")
	f.clk.Advance(time.Hour)

	if st := f.pm.Flush(ctx); st.Written != 1 || st.Passivated != 0 {
		t.Fatalf("Flush = %+v, want one write", st)
	}
	if st := f.pm.Flush(ctx); st.Written != 0 {
		t.Errorf("second Flush wrote %d sessions", st.Written)
	}
	if !f.s.Registry.Has("abc") {
		t.Error("Flush evicted a session")
	}
}

func TestInitialize_DeletesCorruptFiles(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.files.Dir(), "sfsb_X")
	if err := os.WriteFile(path, []byte("not a frame"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Chtimes(path, f.clk.Now(), f.clk.Now()); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	st, err := f.pm.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if st.Corrupt != 1 {
		t.Errorf("Corrupt = %d, want 1", st.Corrupt)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("corrupt file still present: %v", err)
	}
	if f.s.Registry.Has("X") {
		t.Error("corrupt session made resident")
	}
}

func TestInitialize_DeletesUnknownTypes(t *testing.T) {
	f := newFixture(t)
	f.writeWrapper(t, &bean.Wrapper{ID: "ghost", Type: "ghost", CreatedAt: t0})

	st, err := f.pm.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if st.Corrupt != 1 || f.stored("ghost") {
		t.Errorf("unknown type: stats %+v, stored %v", st, f.stored("ghost"))
	}
}

func TestInitialize_RecoversOnlyFreshEntries(t *testing.T) {
	f := newFixture(t)
	stale, _ := bean.Snapshot("old", t0, t0.Add(time.Hour), &noteBean{Text: "old"})
	f.writeWrapper(t, stale)

	f.clk.Advance(testInactivity + time.Second)
	fresh, _ := bean.Snapshot("new", t0, t0.Add(time.Hour), &noteBean{Text: "new", Count: 2})
	f.writeWrapper(t, fresh)
	f.clk.Advance(time.Second)

	st, err := f.pm.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if st.Recovered != 1 {
		t.Fatalf("Recovered = %d, want 1", st.Recovered)
	}
	if f.s.Registry.Has("old") {
		t.Error("stale entry recovered")
	}
	if !f.stored("old") {
		t.Error("stale entry deleted by recovery")
	}

	e, ok := f.s.Registry.Get("new")
	if !ok {
		t.Fatal("fresh entry not recovered")
	}
	if sum, ok := f.s.Checksums.Get("new"); !ok || sum != bean.Checksum(fresh) {
		t.Error("recovered checksum missing or wrong")
	}
	if idle := e.IdleFor(f.clk.Now()); idle < 0 || idle > 2*time.Second {
		t.Errorf("recovered idle = %v, want about 1s", idle)
	}
	e.Lock()
	if b := e.Bean().(*noteBean); b.Text != "new" || b.Count != 2 {
		t.Errorf("recovered bean = %+v", b)
	}
	e.Unlock()

	// Unchanged after recovery, so nothing is rewritten.
	if st := f.pm.Persist(context.Background()); st.Written != 0 {
		t.Errorf("Persist after recovery wrote %d sessions", st.Written)
	}
}

func TestInitialize_AgesFramesWithoutExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, _ := bean.Snapshot("old", time.Time{}, time.Time{}, &noteBean{Text: "x"})
	f.writeWrapper(t, w)

	if st, err := f.pm.Initialize(ctx); err != nil || st.Recovered != 1 {
		t.Fatalf("Initialize = %+v, %v", st, err)
	}
	e, ok := f.s.Registry.Get("old")
	if !ok {
		t.Fatal("entry not recovered")
	}
	if want := t0.Add(testMaxAge); !e.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", e.ExpiresAt, want)
	}

	f.clk.Advance(10 * testMaxAge)
	e.Touch(f.clk.Now())
	st := f.gc.Collect(ctx)
	if st.Expired != 1 {
		t.Fatalf("Collect = %+v, want one expiry", st)
	}
	if f.s.Registry.Has("old") || f.dead.Count("old") != 1 {
		t.Error("active session without expiry outlived the maximum age")
	}
}

func TestUnpersist_AgesFramesFromCreation(t *testing.T) {
	f := newFixture(t)
	created := t0.Add(-10 * time.Second)
	w, _ := bean.Snapshot("abc", created, time.Time{}, &noteBean{Text: "x"})
	f.writeWrapper(t, w)

	e, err := f.pm.Unpersist(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Unpersist: %v", err)
	}
	if want := created.Add(testMaxAge); !e.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", e.ExpiresAt, want)
	}
}

func TestUnpersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("missing", func(t *testing.T) {
		_, err := f.pm.Unpersist(ctx, "nobody")
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Fatalf("error = %v, want ErrSessionNotFound", err)
		}
		if f.s.Registry.Len() != 0 || f.stored("nobody") {
			t.Error("missing lookup had side effects")
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		if err := f.files.Write("broken", []byte("SFSBWRAP garbage")); err != nil {
			t.Fatalf("Write: %v", err)
		}
		_, err := f.pm.Unpersist(ctx, "broken")
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Fatalf("error = %v, want ErrSessionNotFound", err)
		}
		if f.stored("broken") {
			t.Error("corrupt file not deleted")
		}
	})

	t.Run("passivated", func(t *testing.T) {
		f.add(t, "abc", "cart")
		f.pm.Persist(ctx)
		f.clk.Advance(testInactivity)
		f.pm.Persist(ctx)
		if f.s.Registry.Has("abc") {
			t.Fatal("session not passivated")
		}

		e, err := f.pm.Unpersist(ctx, "abc")
		if err != nil {
			t.Fatalf("Unpersist: %v", err)
		}
		if got, _ := f.s.Registry.Get("abc"); got != e {
			t.Error("unpersisted entry not resident")
		}
		if _, ok := f.s.Checksums.Get("abc"); !ok {
			t.Error("unpersisted checksum missing")
		}
		if e.IdleFor(f.clk.Now()) != 0 {
			t.Errorf("on-demand reload idle = %v, want 0", e.IdleFor(f.clk.Now()))
		}
		again, err := f.pm.Unpersist(ctx, "abc")
		if err != nil || again != e {
			t.Errorf("second Unpersist = %p, %v, want resident entry", again, err)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		if _, err := f.pm.Unpersist(ctx, "../etc"); !errors.Is(err, domain.ErrInvalidSessionID) {
			t.Errorf("error = %v, want ErrInvalidSessionID", err)
		}
	})
}

func TestUnpersist_WrongKeyKeepsFile(t *testing.T) {
	keyA := make([]byte, adaptive.KeySize)
	keyB := make([]byte, adaptive.KeySize)
	keyB[0] = 1
	cipherA, err := adaptive.New(keyA)
	if err != nil {
		t.Fatalf("adaptive.New: %v", err)
	}
	cipherB, err := adaptive.New(keyB)
	if err != nil {
		t.Fatalf("adaptive.New: %v", err)
	}

	f := newFixtureWithCodec(t, codec.New(codec.Options{Cipher: cipherB}))
	w, _ := bean.Snapshot("sec", t0, time.Time{}, &noteBean{Text: "secret"})
	blob, err := codec.New(codec.Options{Cipher: cipherA}).Encode(w)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := f.files.Write("sec", blob); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, err = f.pm.Unpersist(context.Background(), "sec")
	if !errors.Is(err, domain.ErrCipherMismatch) {
		t.Fatalf("error = %v, want ErrCipherMismatch", err)
	}
	if !f.stored("sec") {
		t.Error("file deleted on cipher mismatch")
	}
}
