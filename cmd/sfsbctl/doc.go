// Package main provides the entry point for sfsbctl.
//
// sfsbctl works on a session directory directly, without a running
// daemon:
//
//   - list stored sessions with their header metadata and expiry state
//   - show the decoded fields of one session
//   - gc expired and corrupt sessions, or report them with --dry-run
//   - verify that every stored session still decodes
//
// Usage:
//
//	sfsbctl --dir ./data/sessions list
//	sfsbctl --dir ./data/sessions -o json show 01J9Z3...
//	SFSB_KEY=... sfsbctl gc --dry-run
package main
