// Package storage persists encoded session frames.
//
// A Store holds one opaque blob per session id. FileStore keeps the
// classic flat layout, <dir>/<prefix><id>, and replaces files atomically
// through a temp file and rename, so a concurrent reader or deleter sees
// either the previous content, the new content, or no file. BadgerStore
// keeps the same blobs in an embedded Badger database under
// <prefix><id> keys.
//
// Filter selects the entries worth reloading at startup: those modified
// within the inactivity window.
package storage
