package storage

import (
	"iter"
	"strings"
	"time"

	"github.com/yndnr/sfsb-go/internal/core/domain"
)

// Entry describes one stored session.
type Entry struct {
	ID      string
	Path    string
	ModTime time.Time
	Size    int64
}

// Store is durable per-session blob storage.
type Store interface {
	// Write replaces the blob for id atomically.
	Write(id string, blob []byte) error

	// Read returns the blob for id. A missing entry yields an error
	// matching fs.ErrNotExist.
	Read(id string) ([]byte, error)

	// Remove deletes the blob for id. Removing a missing entry succeeds.
	Remove(id string) error

	// Stat describes the entry for id, or fails with fs.ErrNotExist.
	Stat(id string) (Entry, error)

	// Entries lazily enumerates every stored session. A non-nil error
	// describes one entry that could not be listed; enumeration goes on.
	Entries() iter.Seq2[Entry, error]

	Close() error
}

// ValidateID rejects ids that cannot safely name a storage entry.
func ValidateID(id string) error {
	switch {
	case id == "":
		return domain.ErrInvalidSessionID.WithDetails("empty id")
	case id == "." || id == "..", strings.ContainsAny(id, "/\\\x00"):
		return domain.ErrInvalidSessionID.WithDetailsf("id %q", id)
	}
	return nil
}
