// Package cmap provides a sharded concurrent map keyed by strings.
//
// Keys are routed to shards with murmur3, and every shard carries its own
// RWMutex, so a long iteration over one shard never blocks readers of
// another. Keys copies each shard under its read lock, which lets callers
// mutate the map while walking the snapshot.
//
// Usage:
//
//	m := cmap.New[string, *Entry]()
//	m.Set("abc", entry)
//	e, ok := m.Get("abc")
//	for _, id := range m.Keys() {
//		...
//	}
package cmap
