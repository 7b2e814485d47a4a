package tlsroots

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// KeyPair serves a certificate and key from disk and reloads them when
// either file is written or replaced.
type KeyPair struct {
	certFile string
	keyFile  string
	debounce time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	cert *tls.Certificate

	watcher *fsnotify.Watcher
	done    chan struct{}
	stopped chan struct{}
}

// KeyPairOption configures a KeyPair.
type KeyPairOption func(*KeyPair)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) KeyPairOption {
	return func(kp *KeyPair) { kp.logger = l }
}

// WithDebounce sets how long to wait after the last change before reloading.
func WithDebounce(d time.Duration) KeyPairOption {
	return func(kp *KeyPair) { kp.debounce = d }
}

// LoadKeyPair loads the pair once. Call Watch to follow later changes.
func LoadKeyPair(certFile, keyFile string, opts ...KeyPairOption) (*KeyPair, error) {
	kp := &KeyPair{
		certFile: certFile,
		keyFile:  keyFile,
		debounce: 200 * time.Millisecond,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(kp)
	}
	if err := kp.reload(); err != nil {
		return nil, err
	}
	return kp, nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (kp *KeyPair) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	return kp.cert, nil
}

// Watch starts following the directories of both files in the background.
// Directories are watched rather than files so atomic renames are seen.
func (kp *KeyPair) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	dirs := []string{filepath.Dir(kp.certFile)}
	if d := filepath.Dir(kp.keyFile); d != dirs[0] {
		dirs = append(dirs, d)
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			w.Close()
			return fmt.Errorf("tlsroots: watch %s: %w", d, err)
		}
	}
	kp.watcher = w
	kp.done = make(chan struct{})
	kp.stopped = make(chan struct{})
	go kp.loop()
	kp.logger.Info("certificate watcher started", "cert_file", kp.certFile, "key_file", kp.keyFile)
	return nil
}

// Stop ends Watch. It is a no-op when Watch was never called.
func (kp *KeyPair) Stop() error {
	if kp.watcher == nil {
		return nil
	}
	close(kp.done)
	<-kp.stopped
	return kp.watcher.Close()
}

func (kp *KeyPair) loop() {
	defer close(kp.stopped)

	certBase, keyBase := filepath.Base(kp.certFile), filepath.Base(kp.keyFile)
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case ev, ok := <-kp.watcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(ev.Name)
			if base != certBase && base != keyBase {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(kp.debounce)
			} else {
				timer.Reset(kp.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := kp.reload(); err != nil {
				// The previous pair stays in service.
				kp.logger.Error("certificate reload failed", "cert_file", kp.certFile, "error", err)
			}
		case err, ok := <-kp.watcher.Errors:
			if !ok {
				return
			}
			kp.logger.Warn("certificate watcher error", "error", err)
		case <-kp.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (kp *KeyPair) reload() error {
	cert, err := tls.LoadX509KeyPair(kp.certFile, kp.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	kp.mu.Lock()
	kp.cert = &cert
	kp.mu.Unlock()
	kp.logger.Debug("certificate loaded", "cert_file", kp.certFile)
	return nil
}
