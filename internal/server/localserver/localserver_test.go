package localserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/sfsb-go/internal/core/service"
	"github.com/yndnr/sfsb-go/internal/telemetry/logger"
)

type fakeContainer struct {
	collects atomic.Int32
	flushes  atomic.Int32
}

func (f *fakeContainer) Stats() service.Stats {
	return service.Stats{Resident: 2, Indexed: 1, Stored: 3, Running: true}
}

func (f *fakeContainer) Collect(context.Context) service.CollectStats {
	f.collects.Add(1)
	return service.CollectStats{Stored: 3, Expired: 1}
}

func (f *fakeContainer) Flush(context.Context) service.PersistStats {
	f.flushes.Add(1)
	return service.PersistStats{Scanned: 2, Written: 1}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// socketPath returns a path short enough for every platform's limit.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "sfsb")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "ctl.sock")
}

func startServer(t *testing.T, h *Handler) *Server {
	t.Helper()
	srv := New(socketPath(t), h, discard())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("ListenAndServe: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server not ready")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
		if err := <-errCh; err != nil {
			t.Errorf("ListenAndServe returned %v", err)
		}
	})
	return srv
}

func TestHandler_Execute(t *testing.T) {
	fc := &fakeContainer{}
	var reason string
	h := NewHandler(HandlerConfig{Container: fc, Shutdown: func(r string) { reason = r }, Logger: discard()})
	ctx := context.Background()

	tests := []struct {
		cmd     string
		args    []string
		ok      bool
		contain string
	}{
		{"status", nil, true, `"stored":3`},
		{"gc", nil, true, `"expired":1`},
		{"flush", nil, true, `"written":1`},
		{"shutdown", nil, true, `shutting down`},
		{"bogus", nil, false, `unknown command: bogus`},
		{"", nil, false, `empty command`},
		{"level", []string{"a", "b"}, false, `at most one`},
		{"level", []string{"chatty"}, false, ``},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if err := h.Execute(ctx, &buf, tt.cmd, tt.args); err != nil {
			t.Fatalf("Execute(%q): %v", tt.cmd, err)
		}
		if !strings.HasSuffix(buf.String(), "\n") {
			t.Errorf("%q: reply not newline terminated", tt.cmd)
		}
		var r Reply
		if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
			t.Fatalf("%q: decode: %v", tt.cmd, err)
		}
		if r.OK != tt.ok {
			t.Errorf("%q: ok = %v, want %v (%s)", tt.cmd, r.OK, tt.ok, buf.String())
		}
		if !strings.Contains(buf.String(), tt.contain) {
			t.Errorf("%q: reply %s does not contain %s", tt.cmd, buf.String(), tt.contain)
		}
	}
	if fc.collects.Load() != 1 || fc.flushes.Load() != 1 {
		t.Errorf("collects=%d flushes=%d", fc.collects.Load(), fc.flushes.Load())
	}
	if reason != "local socket" {
		t.Errorf("shutdown reason = %q", reason)
	}
}

func TestHandler_Level(t *testing.T) {
	prev := logger.GetLevel()
	t.Cleanup(func() { _ = logger.SetLevel(prev) })

	h := NewHandler(HandlerConfig{Container: &fakeContainer{}, Logger: discard()})
	var buf bytes.Buffer
	if err := h.Execute(context.Background(), &buf, "level", []string{"debug"}); err != nil {
		t.Fatal(err)
	}
	if logger.GetLevel() != "debug" || !strings.Contains(buf.String(), `"level":"debug"`) {
		t.Errorf("level = %s, reply %s", logger.GetLevel(), buf.String())
	}
}

func TestServer_Call(t *testing.T) {
	fc := &fakeContainer{}
	srv := startServer(t, NewHandler(HandlerConfig{Container: fc, Logger: discard()}))

	info, err := os.Stat(srv.Path())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("socket mode = %o, want 600", perm)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := Call(ctx, srv.Path(), "status")
	if err != nil {
		t.Fatalf("Call(status): %v", err)
	}
	var st service.Stats
	if err := json.Unmarshal(reply.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.Stored != 3 || !st.Running {
		t.Errorf("stats = %+v", st)
	}

	if _, err := Call(ctx, srv.Path(), "GC"); err != nil {
		t.Errorf("Call(GC): %v", err)
	}
	if fc.collects.Load() != 1 {
		t.Errorf("collects = %d", fc.collects.Load())
	}

	reply, err = Call(ctx, srv.Path(), "nope")
	if err == nil || reply == nil || reply.OK {
		t.Errorf("Call(nope) = %+v, %v", reply, err)
	}
}

func TestServer_MultipleCommandsPerConnection(t *testing.T) {
	srv := startServer(t, NewHandler(HandlerConfig{Container: &fakeContainer{}, Logger: discard()}))

	conn, err := net.Dial("unix", srv.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte("status\nflush\n")); err != nil {
		t.Fatal(err)
	}
	dec := json.NewDecoder(conn)
	for i := range 2 {
		var r Reply
		if err := dec.Decode(&r); err != nil {
			t.Fatalf("reply %d: %v", i, err)
		}
		if !r.OK {
			t.Errorf("reply %d not ok: %s", i, r.Error)
		}
	}
}

func TestServer_ShutdownClosesIdleConnections(t *testing.T) {
	srv := New(socketPath(t), NewHandler(HandlerConfig{Container: &fakeContainer{}}), discard())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	<-srv.Ready()

	conn, err := net.Dial("unix", srv.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	// Round trip once so the connection is being served.
	if _, err := conn.Write([]byte("status\n")); err != nil {
		t.Fatal(err)
	}
	var r Reply
	if err := json.NewDecoder(conn).Decode(&r); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("ListenAndServe: %v", err)
	}
	if _, err := os.Stat(srv.Path()); !os.IsNotExist(err) {
		t.Errorf("socket file left behind: %v", err)
	}
}

func TestServer_ReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	srv := New(path, NewHandler(HandlerConfig{Container: &fakeContainer{}}), discard())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("ListenAndServe: %v", err)
	}
	_ = srv.Shutdown(context.Background())
	<-errCh
}

func TestServer_RefusesLiveSocket(t *testing.T) {
	first := startServer(t, NewHandler(HandlerConfig{Container: &fakeContainer{}}))
	second := New(first.Path(), NewHandler(HandlerConfig{Container: &fakeContainer{}}), discard())
	err := second.ListenAndServe()
	if err == nil || !strings.Contains(err.Error(), "in use") {
		t.Errorf("ListenAndServe = %v, want in use", err)
	}
}
