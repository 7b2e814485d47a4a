// Package service runs the session container: the persistence daemon
// that writes changed sessions to storage and passivates idle ones, the
// garbage collector that destroys sessions past their maximum age, and
// the Container facade the bean manager calls.
//
// Both daemons share the registry, the checksum index and the store with
// foreground callers. Moves of one id between memory and storage are
// ordered by memory.KeyLocks, and a bean is only read or changed while
// its entry lock is held. Lock order is key stripe, then entry.
package service
