package localserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/yndnr/sfsb-go/internal/core/service"
	"github.com/yndnr/sfsb-go/internal/telemetry/logger"
)

// Container is the part of the session container the socket controls.
type Container interface {
	Stats() service.Stats
	Collect(ctx context.Context) service.CollectStats
	Flush(ctx context.Context) service.PersistStats
}

// Reply is one response line.
type Reply struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	Container Container
	// Shutdown is called by the shutdown command.
	Shutdown func(reason string)
	Logger   *slog.Logger
}

// Handler executes management commands.
type Handler struct {
	container Container
	shutdown  func(string)
	logger    *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Shutdown == nil {
		cfg.Shutdown = func(string) {}
	}
	return &Handler{container: cfg.Container, shutdown: cfg.Shutdown, logger: cfg.Logger}
}

// Execute runs cmd and writes its reply line to w.
func (h *Handler) Execute(ctx context.Context, w io.Writer, cmd string, args []string) error {
	data, err := h.dispatch(ctx, cmd, args)
	reply := Reply{OK: err == nil}
	if err != nil {
		reply.Error = err.Error()
	} else if data != nil {
		raw, merr := json.Marshal(data)
		if merr != nil {
			return merr
		}
		reply.Data = raw
	}
	line, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	_, err = w.Write(append(line, '\n'))
	return err
}

func (h *Handler) dispatch(ctx context.Context, cmd string, args []string) (any, error) {
	switch cmd {
	case "status":
		return h.container.Stats(), nil
	case "gc":
		st := h.container.Collect(ctx)
		h.logger.InfoContext(ctx, "collection forced from local socket",
			"expired", st.Expired, "corrupt", st.Corrupt, "failed", st.Failed)
		return map[string]any{
			"resident":   st.Resident,
			"stored":     st.Stored,
			"expired":    st.Expired,
			"corrupt":    st.Corrupt,
			"failed":     st.Failed,
			"elapsed_ms": st.Elapsed.Milliseconds(),
		}, nil
	case "flush":
		st := h.container.Flush(ctx)
		return map[string]any{
			"scanned":    st.Scanned,
			"written":    st.Written,
			"failed":     st.Failed,
			"elapsed_ms": st.Elapsed.Milliseconds(),
		}, nil
	case "level":
		return h.level(ctx, args)
	case "shutdown":
		h.logger.InfoContext(ctx, "shutdown requested from local socket")
		h.shutdown("local socket")
		return map[string]string{"status": "shutting down"}, nil
	case "":
		return nil, fmt.Errorf("empty command")
	default:
		return nil, fmt.Errorf("unknown command: %s", cmd)
	}
}

func (h *Handler) level(ctx context.Context, args []string) (any, error) {
	switch len(args) {
	case 0:
	case 1:
		if err := logger.SetLevel(args[0]); err != nil {
			return nil, err
		}
		h.logger.InfoContext(ctx, "log level changed from local socket", "level", logger.GetLevel())
	default:
		return nil, fmt.Errorf("level takes at most one argument")
	}
	return map[string]string{"level": logger.GetLevel()}, nil
}
