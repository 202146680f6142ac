// internal/models/cart.go
package models

import (
	"fmt"
	"strings"
)

const compositeSeparator = ":"

// CompositeID identifies a cart line. An empty VariantID means the product
// was added without a variant.
type CompositeID struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
}

func (id CompositeID) String() string {
	if id.VariantID == "" {
		return id.ProductID
	}
	return id.ProductID + compositeSeparator + id.VariantID
}

func (id CompositeID) IsZero() bool {
	return id.ProductID == ""
}

// ParseCompositeID is the inverse of CompositeID.String.
func ParseCompositeID(s string) (CompositeID, error) {
	s = strings.TrimSpace(s)
	productID, variantID, _ := strings.Cut(s, compositeSeparator)
	if productID == "" {
		return CompositeID{}, fmt.Errorf("invalid cart item id %q", s)
	}
	return CompositeID{ProductID: productID, VariantID: variantID}, nil
}

type CartItem struct {
	// ID is the server-side line id; local lines have none.
	ID            string   `json:"id,omitempty"`
	ProductID     string   `json:"productId" validate:"required"`
	VariantID     string   `json:"variantId,omitempty"`
	Name          string   `json:"name"`
	Price         Number   `json:"price" validate:"gte=0"`
	OriginalPrice *Number  `json:"originalPrice,omitempty"`
	Quantity      Count    `json:"quantity" validate:"gte=1"`
	VendorID      string   `json:"vendorId,omitempty"`
	Images        []string `json:"images,omitempty"`
	Stock         *Count   `json:"stock,omitempty"`
	// FoldedIDs are the server ids of duplicate rows merged into this line.
	FoldedIDs     []string `json:"-"`
}

// ServerIDs lists every server row backing the line, primary id first.
func (i CartItem) ServerIDs() []string {
	if i.ID == "" {
		return nil
	}
	return append([]string{i.ID}, i.FoldedIDs...)
}

func (i CartItem) Key() CompositeID {
	return CompositeID{ProductID: i.ProductID, VariantID: i.VariantID}
}

// Cart is an unordered collection of lines with unique composite ids.
type Cart struct {
	Items []CartItem `json:"items"`
}

func (c Cart) Len() int {
	return len(c.Items)
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) index(id CompositeID) int {
	for i := range c.Items {
		if c.Items[i].Key() == id {
			return i
		}
	}
	return -1
}

func (c Cart) Find(id CompositeID) (CartItem, bool) {
	if i := c.index(id); i >= 0 {
		return c.Items[i], true
	}
	return CartItem{}, false
}

// Add merges item into the cart. A line with the same composite id gets its
// quantity increased; otherwise the item is appended.
func (c *Cart) Add(item CartItem) {
	if i := c.index(item.Key()); i >= 0 {
		c.Items[i].Quantity += item.Quantity
		return
	}
	c.Items = append(c.Items, item)
}

// SetQuantity replaces the quantity of an existing line. It reports whether
// the line was found.
func (c *Cart) SetQuantity(id CompositeID, qty int) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.Items[i].Quantity = Count(qty)
	return true
}

func (c *Cart) Remove(id CompositeID) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// Clone returns a deep copy so callers can mutate it freely.
func (c Cart) Clone() Cart {
	if c.Items == nil {
		return Cart{}
	}
	items := make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		if item.Images != nil {
			item.Images = append([]string(nil), item.Images...)
		}
		if item.FoldedIDs != nil {
			item.FoldedIDs = append([]string(nil), item.FoldedIDs...)
		}
		if item.OriginalPrice != nil {
			p := *item.OriginalPrice
			item.OriginalPrice = &p
		}
		if item.Stock != nil {
			s := *item.Stock
			item.Stock = &s
		}
		items[i] = item
	}
	return Cart{Items: items}
}

// Normalize folds duplicate composite ids into a single line, keeping the
// first line's attributes.
func (c Cart) Normalize() Cart {
	var out Cart
	for _, item := range c.Items {
		out.Add(item)
	}
	return out
}

// Totals are derived from a cart and never stored.
type Totals struct {
	TotalItems int     `json:"totalItems"`
	TotalPrice float64 `json:"totalPrice"`
}
