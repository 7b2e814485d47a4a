// Package cart implements the shopping-cart bean served by sfsbd.
package cart

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/pkg/cmap"
)

// Type is the tag carts are registered under.
const Type = "cart"

// MaxQuantity bounds the quantity of a single line.
const MaxQuantity = 10_000

var (
	ErrInvalidSKU      = errors.New("cart: sku is required")
	ErrInvalidQuantity = fmt.Errorf("cart: quantity must be between 1 and %d", MaxQuantity)
)

// Item is one line of a cart.
type Item struct {
	SKU        string `cbor:"sku" json:"sku"`
	Quantity   int    `cbor:"qty" json:"quantity"`
	PriceCents int64  `cbor:"price" json:"price_cents"`
}

// Cart is a shopping cart. The container serializes access to a cart, so
// its methods do no locking of their own. Views and mu are process-local
// and never persisted.
type Cart struct {
	Owner     string
	Items     []Item
	UpdatedAt time.Time

	// Views counts reads per client since the cart became resident.
	Views *cmap.Map[string, int]
	mu    *sync.Mutex
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{
		Views: cmap.New[string, int](),
		mu:    &sync.Mutex{},
	}
}

// Register adds the cart factory to types.
func Register(types *bean.Types) {
	types.Register(Type, func() bean.Bean { return New() })
}

// BeanType implements bean.Bean.
func (c *Cart) BeanType() string { return Type }

// MarshalFields implements bean.Bean.
func (c *Cart) MarshalFields(w *bean.FieldWriter) {
	w.Put("owner", c.Owner)
	w.Put("items", c.Items)
	w.Put("updated_at", c.UpdatedAt)
	w.Put("views", c.Views)
	w.Put("mu", c.mu)
}

// UnmarshalFields implements bean.Bean.
func (c *Cart) UnmarshalFields(r *bean.FieldReader) error {
	r.Get("owner", &c.Owner)
	r.Get("items", &c.Items)
	r.Get("updated_at", &c.UpdatedAt)
	return r.Err()
}

// Add puts quantity units of sku into the cart, merging with an existing
// line. A non-zero price replaces the line price.
func (c *Cart) Add(sku string, quantity int, priceCents int64, now time.Time) error {
	if sku == "" {
		return ErrInvalidSKU
	}
	if quantity <= 0 || quantity > MaxQuantity {
		return ErrInvalidQuantity
	}
	i := slices.IndexFunc(c.Items, func(it Item) bool { return it.SKU == sku })
	if i < 0 {
		c.Items = append(c.Items, Item{SKU: sku, Quantity: quantity, PriceCents: priceCents})
	} else {
		q := c.Items[i].Quantity + quantity
		if q > MaxQuantity {
			return ErrInvalidQuantity
		}
		c.Items[i].Quantity = q
		if priceCents != 0 {
			c.Items[i].PriceCents = priceCents
		}
	}
	c.UpdatedAt = now.UTC()
	return nil
}

// Remove drops the line for sku and reports whether it existed.
func (c *Cart) Remove(sku string, now time.Time) bool {
	n := len(c.Items)
	c.Items = slices.DeleteFunc(c.Items, func(it Item) bool { return it.SKU == sku })
	if len(c.Items) == n {
		return false
	}
	c.UpdatedAt = now.UTC()
	return true
}

// TotalCents sums the cart.
func (c *Cart) TotalCents() int64 {
	var total int64
	for _, it := range c.Items {
		total += int64(it.Quantity) * it.PriceCents
	}
	return total
}

// Viewed records a read by client and returns the client's view count.
func (c *Cart) Viewed(client string) int {
	if c.Views == nil {
		c.Views = cmap.New[string, int]()
	}
	return c.Views.Update(client, func(n int, _ bool) int { return n + 1 })
}
