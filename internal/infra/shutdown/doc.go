// Package shutdown runs ordered cleanup hooks when sfsbd is asked to stop.
//
// Hooks run in reverse registration order under one shared deadline, so
// components started last stop first: the HTTP server before the session
// container, the container before the config watcher.
package shutdown
