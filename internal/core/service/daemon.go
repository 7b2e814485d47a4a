package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/sfsb-go/pkg/clock"
)

// loop calls run once per interval until stopped. A stop request is
// observed between runs: an in-flight run always completes.
type loop struct {
	name     string
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	run      func(ctx context.Context)

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// start launches the loop. It reports false if the loop is already running.
func (l *loop) start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopCh != nil {
		return false
	}
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	ticker := l.clock.NewTicker(l.interval)
	go l.backgroundLoop(ticker, l.stopCh, l.doneCh)
	l.logger.Debug("daemon started", "daemon", l.name, "interval", l.interval)
	return true
}

// stop signals the loop and waits for it to exit. Stopping a loop that
// is not running is a no-op.
func (l *loop) stop() {
	l.mu.Lock()
	stopCh, doneCh := l.stopCh, l.doneCh
	l.stopCh, l.doneCh = nil, nil
	l.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
	l.logger.Debug("daemon stopped", "daemon", l.name)
}

func (l *loop) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopCh != nil
}

func (l *loop) backgroundLoop(ticker *clock.Ticker, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Both channels may be ready; prefer stopping.
			select {
			case <-stopCh:
				return
			default:
			}
			l.run(context.Background())
		case <-stopCh:
			return
		}
	}
}
