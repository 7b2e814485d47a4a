package handler

import (
	"time"

	"github.com/yndnr/sfsb-go/internal/beans/cart"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// CreateCartRequest is the request body for POST /carts.
type CreateCartRequest struct {
	Owner string `json:"owner,omitempty"`
}

// AddItemRequest is the request body for POST /carts/{id}/items.
type AddItemRequest struct {
	SKU        string `json:"sku"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents,omitempty"`
}

// CartResponse represents a cart in API responses.
type CartResponse struct {
	ID         string      `json:"id"`
	Owner      string      `json:"owner,omitempty"`
	Items      []cart.Item `json:"items"`
	TotalCents int64       `json:"total_cents"`
	UpdatedAt  time.Time   `json:"updated_at,omitzero"`
	Views      int         `json:"views,omitempty"`
}

// CollectResponse is the response body for POST /admin/gc.
type CollectResponse struct {
	Resident  int   `json:"resident"`
	Stored    int   `json:"stored"`
	Expired   int   `json:"expired"`
	Corrupt   int   `json:"corrupt"`
	Failed    int   `json:"failed"`
	ElapsedMS int64 `json:"elapsed_ms"`
}

// FlushResponse is the response body for POST /admin/flush.
type FlushResponse struct {
	Scanned   int   `json:"scanned"`
	Written   int   `json:"written"`
	Failed    int   `json:"failed"`
	ElapsedMS int64 `json:"elapsed_ms"`
}

// StatsResponse is the response body for GET /admin/stats.
type StatsResponse struct {
	Resident  int    `json:"resident"`
	Indexed   int    `json:"indexed"`
	Stored    int    `json:"stored"`
	Running   bool   `json:"running"`
	Destroyed int64  `json:"destroyed"`
	Backend   string `json:"backend"`
	SavePath  string `json:"save_path"`
}
