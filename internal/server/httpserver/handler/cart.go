package handler

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/yndnr/sfsb-go/internal/beans/cart"
	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/internal/core/domain"
	"github.com/yndnr/sfsb-go/internal/core/service"
)

// withCart runs fn on the cart stored under id.
func (h *Handler) withCart(ctx context.Context, id string, fn func(c *cart.Cart) error) error {
	return h.container.With(ctx, id, func(b bean.Bean) error {
		c, ok := b.(*cart.Cart)
		if !ok {
			return domain.ErrUnknownType.WithDetailsf("session %s holds a %s, not a cart", id, b.BeanType())
		}
		return fn(c)
	})
}

func toCartResponse(id string, c *cart.Cart) CartResponse {
	// Encoded after the entry lock is released.
	items := slices.Clone(c.Items)
	if items == nil {
		items = []cart.Item{}
	}
	return CartResponse{
		ID:         id,
		Owner:      c.Owner,
		Items:      items,
		TotalCents: c.TotalCents(),
		UpdatedAt:  c.UpdatedAt,
	}
}

// handleCreateCart handles POST /carts.
func (h *Handler) handleCreateCart(w http.ResponseWriter, r *http.Request) {
	var req CreateCartRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	c := cart.New()
	c.Owner = req.Owner
	c.UpdatedAt = h.clock.Now().UTC()
	id := service.NewSessionID()
	if err := h.container.Add(id, c); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "cart created", "session_id", id)
	w.Header().Set("Location", "/carts/"+id)
	h.writeJSON(w, r, http.StatusCreated, toCartResponse(id, c))
}

// handleGetCart handles GET /carts/{id}.
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var resp CartResponse
	err := h.withCart(r.Context(), id, func(c *cart.Cart) error {
		resp = toCartResponse(id, c)
		resp.Views = c.Viewed(clientIP(r))
		return nil
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleAddItem handles POST /carts/{id}/items.
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	var resp CartResponse
	err := h.withCart(r.Context(), id, func(c *cart.Cart) error {
		if err := c.Add(req.SKU, req.Quantity, req.PriceCents, h.clock.Now()); err != nil {
			return err
		}
		resp = toCartResponse(id, c)
		return nil
	})
	switch {
	case errors.Is(err, cart.ErrInvalidSKU), errors.Is(err, cart.ErrInvalidQuantity):
		h.writeError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
	case err != nil:
		h.handleServiceError(w, r, err)
	default:
		h.writeJSON(w, r, http.StatusOK, resp)
	}
}

// handleRemoveItem handles DELETE /carts/{id}/items/{sku}.
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, sku := r.PathValue("id"), r.PathValue("sku")
	var (
		resp    CartResponse
		removed bool
	)
	err := h.withCart(r.Context(), id, func(c *cart.Cart) error {
		removed = c.Remove(sku, h.clock.Now())
		resp = toCartResponse(id, c)
		return nil
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if !removed {
		h.writeError(w, r, http.StatusNotFound, "SFSB-HTTP-4040", "item not in cart", sku)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleDeleteCart handles DELETE /carts/{id}.
func (h *Handler) handleDeleteCart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.container.Remove(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"id": id, "removed": true})
}
