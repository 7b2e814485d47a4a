// Package memory holds the resident side of the session container: the
// registry of live beans, the index of checksums last written to storage,
// and the per-id locks that order memory/storage transitions.
//
// Both maps are sharded (pkg/cmap). A daemon scanning the registry works
// on a key snapshot and never holds a lock that foreground lookups of
// other ids would wait on.
package memory
