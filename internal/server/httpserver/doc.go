// Package httpserver provides the HTTP server of sfsbd.
//
// This package serves the cart API and admin endpoints over stdlib net/http:
//
//   - Cart endpoints: /carts, /carts/{id}, /carts/{id}/items
//   - Admin endpoints: /admin/gc, /admin/flush, /admin/stats
//   - Health endpoints: /health, /metrics
//
// Features:
//
//   - Middleware chain: RequestID, Recover, Instrument, AccessLog, LimitBody
//   - Per-route Prometheus request metrics
//   - Graceful shutdown with configurable timeout
package httpserver
