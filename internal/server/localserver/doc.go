// Package localserver serves a management socket for operators on the
// same host as sfsbd.
//
// The socket speaks a line protocol: each request is one line of
// whitespace-separated words, and each reply is one JSON object on its
// own line. Access is governed by the socket's file permissions (0600),
// so the socket is available even when the HTTP admin routes are not.
//
// Commands:
//
//	status          container statistics
//	gc              run a collection pass now
//	flush           write every changed session
//	level [LEVEL]   show or change the log level
//	shutdown        stop the daemon gracefully
package localserver
