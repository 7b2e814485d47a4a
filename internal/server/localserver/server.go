package localserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// maxLine bounds a request line.
const maxLine = 4096

// idleTimeout closes connections that send nothing.
const idleTimeout = 5 * time.Minute

// Server represents the local management server.
type Server struct {
	path    string
	handler *Handler
	logger  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	running  atomic.Bool
	wg       sync.WaitGroup

	// ready is closed once the socket accepts connections.
	ready chan struct{}
}

// New creates a new local server on socketPath.
func New(socketPath string, h *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		path:    socketPath,
		handler: h,
		logger:  logger.With("component", "localserver"),
		conns:   make(map[net.Conn]struct{}),
		ready:   make(chan struct{}),
	}
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Ready is closed once ListenAndServe is accepting connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// ListenAndServe creates the socket and serves it until Shutdown. A stale
// socket file left by a crashed process is replaced; a live one is not.
func (s *Server) ListenAndServe() error {
	if err := s.removeStale(); err != nil {
		return err
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("localserver: listen %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("localserver: chmod %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.running.Store(true)
	close(s.ready)
	s.logger.Info("local socket listening", "path", s.path)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) removeStale() error {
	if _, err := os.Lstat(s.path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if conn, err := net.DialTimeout("unix", s.path, time.Second); err == nil {
		conn.Close()
		return fmt.Errorf("localserver: %s is in use", s.path)
	}
	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("localserver: remove stale socket: %w", err)
	}
	return nil
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// Shutdown stops accepting connections, closes idle ones and waits for
// in-flight commands to finish or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.running.Store(false)
	var closeErr error
	if s.listener != nil {
		closeErr = s.listener.Close()
	}
	for conn := range s.conns {
		// Unblocks readers; a command already executing still completes.
		_ = conn.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if errors.Is(closeErr, net.ErrClosed) {
			return nil
		}
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 512), maxLine)
	for {
		if !s.armDeadline(conn) {
			return
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil && !isTimeout(err) {
				s.logger.Debug("local connection closed", "error", err)
			}
			return
		}
		fields := strings.Fields(sc.Text())
		cmd, args := "", []string(nil)
		if len(fields) > 0 {
			cmd, args = strings.ToLower(fields[0]), fields[1:]
		}
		if err := s.handler.Execute(context.Background(), conn, cmd, args); err != nil {
			s.logger.Debug("local reply failed", "command", cmd, "error", err)
			return
		}
	}
}

// armDeadline extends the idle deadline unless Shutdown has begun. It
// holds mu so Shutdown cannot interleave between the check and the set.
func (s *Server) armDeadline(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return false
	}
	_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
	return true
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
