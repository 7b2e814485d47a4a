// Package tlsroots builds the TLS configuration of the sfsbd listener.
//
// The server key pair is reloaded when its files change, so certificates
// can be rotated without a restart. An optional client CA bundle turns
// on mutual TLS.
package tlsroots
