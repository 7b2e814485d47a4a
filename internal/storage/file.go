package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yndnr/sfsb-go/internal/core/domain"
	"github.com/yndnr/sfsb-go/pkg/clock"
)

const (
	dirMode  = 0o750
	fileMode = 0o640

	// tempPrefix names in-flight writes. Entries never lists them.
	tempPrefix = ".tmp-"

	readDirBatch = 256
)

// FileStore stores one file per session in a flat directory.
type FileStore struct {
	dir    string
	prefix string
	clock  clock.Clock
	logger *slog.Logger
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithClock stamps written files with the clock's time instead of the
// OS time, keeping modification ages consistent with a fake clock.
func WithClock(c clock.Clock) FileOption {
	return func(s *FileStore) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) FileOption {
	return func(s *FileStore) { s.logger = l }
}

// NewFileStore opens (creating if needed) a session directory.
func NewFileStore(dir, prefix string, opts ...FileOption) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage: dir is required")
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	s := &FileStore{dir: dir, prefix: prefix, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the session directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the file path for id.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, s.prefix+id)
}

// Write replaces the session file through a synced temp file and rename.
func (s *FileStore) Write(id string, blob []byte) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := s.writeAtomic(s.Path(id), blob); err != nil {
		return domain.ErrStorageWrite.WithDetailsf("session %s", id).WithCause(err)
	}
	return nil
}

func (s *FileStore) writeAtomic(path string, blob []byte) error {
	tmp, err := os.CreateTemp(s.dir, tempPrefix+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpPath, fileMode); err != nil {
		cleanup()
		return err
	}
	if s.clock != nil {
		now := s.clock.Now()
		if err := os.Chtimes(tmpPath, now, now); err != nil {
			cleanup()
			return err
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return err
	}
	s.syncDir()
	return nil
}

// syncDir makes the rename durable. Failure only weakens crash
// durability, so it is logged and ignored.
func (s *FileStore) syncDir() {
	d, err := os.Open(s.dir)
	if err != nil {
		return
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		s.logger.Debug("session dir sync failed", "dir", s.dir, "error", err)
	}
}

// Read returns the session file content.
func (s *FileStore) Read(id string) ([]byte, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, domain.ErrStorageRead.WithDetailsf("session %s", id).WithCause(err)
	}
	return data, nil
}

// Remove deletes the session file.
func (s *FileStore) Remove(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.Remove(s.Path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.ErrStorageDelete.WithDetailsf("session %s", id).WithCause(err)
	}
	return nil
}

// Stat describes the session file.
func (s *FileStore) Stat(id string) (Entry, error) {
	if err := ValidateID(id); err != nil {
		return Entry{}, err
	}
	path := s.Path(id)
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{ID: id, Path: path, ModTime: info.ModTime(), Size: info.Size()}, nil
}

// Entries lists <prefix>* regular files in directory batches.
func (s *FileStore) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		d, err := os.Open(s.dir)
		if err != nil {
			yield(Entry{}, fmt.Errorf("storage: open dir: %w", err))
			return
		}
		defer d.Close()

		for {
			batch, err := d.ReadDir(readDirBatch)
			for _, de := range batch {
				name := de.Name()
				if !de.Type().IsRegular() || strings.HasPrefix(name, tempPrefix) || !strings.HasPrefix(name, s.prefix) {
					continue
				}
				id := name[len(s.prefix):]
				if id == "" {
					continue
				}
				info, ierr := de.Info()
				if ierr != nil {
					if errors.Is(ierr, fs.ErrNotExist) {
						continue
					}
					if !yield(Entry{ID: id}, ierr) {
						return
					}
					continue
				}
				e := Entry{ID: id, Path: filepath.Join(s.dir, name), ModTime: info.ModTime(), Size: info.Size()}
				if !yield(e, nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Entry{}, fmt.Errorf("storage: read dir: %w", err))
				return
			}
		}
	}
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error { return nil }
