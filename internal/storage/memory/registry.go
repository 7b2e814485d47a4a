package memory

import (
	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/internal/core/domain"
	"github.com/yndnr/sfsb-go/pkg/cmap"
)

// Registry maps session ids to resident entries.
type Registry struct {
	entries *cmap.Map[string, *Entry]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: cmap.New[string, *Entry]()}
}

// Add inserts e, failing with domain.ErrSessionExists if the id is taken.
func (r *Registry) Add(e *Entry) error {
	if !r.entries.SetIfAbsent(e.ID, e) {
		return domain.ErrSessionExists.WithDetailsf("session %s", e.ID)
	}
	return nil
}

// LoadOrStore returns the resident entry for e.ID if there is one, and
// otherwise inserts e. loaded reports which happened.
func (r *Registry) LoadOrStore(e *Entry) (actual *Entry, loaded bool) {
	return r.entries.GetOrSet(e.ID, e)
}

// Get returns the resident entry for id.
func (r *Registry) Get(id string) (*Entry, bool) {
	return r.entries.Get(id)
}

// Has reports whether id is resident.
func (r *Registry) Has(id string) bool {
	return r.entries.Has(id)
}

// RemoveIf removes id only while it still maps to e, so a stale holder
// cannot evict an entry that replaced it.
func (r *Registry) RemoveIf(id string, e *Entry) bool {
	return r.entries.DeleteIf(id, func(cur *Entry) bool { return cur == e })
}

// Keys returns a snapshot of resident ids.
func (r *Registry) Keys() []string {
	return r.entries.Keys()
}

// Len returns the number of resident sessions.
func (r *Registry) Len() int {
	return r.entries.Len()
}

// ChecksumIndex maps session ids to the checksum of their last successful
// write. Absence means the session has never been written.
type ChecksumIndex struct {
	sums *cmap.Map[string, bean.Digest]
}

// NewChecksumIndex returns an empty index.
func NewChecksumIndex() *ChecksumIndex {
	return &ChecksumIndex{sums: cmap.New[string, bean.Digest]()}
}

// Get returns the recorded checksum for id.
func (c *ChecksumIndex) Get(id string) (bean.Digest, bool) {
	return c.sums.Get(id)
}

// Set records d as the checksum written for id.
func (c *ChecksumIndex) Set(id string, d bean.Digest) {
	c.sums.Set(id, d)
}

// Delete forgets id.
func (c *ChecksumIndex) Delete(id string) {
	c.sums.Delete(id)
}

// Len returns the number of recorded checksums.
func (c *ChecksumIndex) Len() int {
	return c.sums.Len()
}
