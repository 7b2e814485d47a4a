// Package command provides the commands of sfsbctl, an offline tool for
// inspecting and maintaining a session directory.
//
// It uses urfave/cli/v2 for command parsing. Commands open the store
// directly, so sfsbd should not be running against the same directory
// while gc is used; the badger backend enforces this with a lock.
package command
