// Package handler provides the HTTP handlers of sfsbd.
//
// This package contains handlers for all HTTP endpoints:
//
//   - cart.go: cart beans held by the session container
//   - admin.go: forced collection, flush and container statistics
//   - health.go: liveness and build information
//
// All handlers follow a consistent pattern:
//
//   - Parse and validate request
//   - Run against the container
//   - Format and return response
//   - Map domain errors to HTTP status codes
package handler
