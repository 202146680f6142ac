// internal/models/product.go
package models

// Product is the catalog view the UI hands to the cart when adding. Price is
// already resolved by the catalog.
type Product struct {
	ID            string    `json:"id" validate:"required"`
	Name          string    `json:"name" validate:"required"`
	Price         Number    `json:"price" validate:"gte=0"`
	OriginalPrice *Number   `json:"originalPrice,omitempty"`
	VendorID      string    `json:"vendorId,omitempty"`
	Images        []string  `json:"images,omitempty"`
	Stock         *Count    `json:"stock,omitempty"`
	Variants      []Variant `json:"variants,omitempty" validate:"omitempty,dive"`
}

type Variant struct {
	ID     string   `json:"id" validate:"required"`
	Name   string   `json:"name"`
	Price  *Number  `json:"price,omitempty"`
	Stock  *Count   `json:"stock,omitempty"`
	Images []string `json:"images,omitempty"`
}

// VariantSelection picks one variant of a product. Price, when set,
// overrides both the variant and product price.
type VariantSelection struct {
	VariantID string  `json:"variantId" validate:"required"`
	Price     *Number `json:"price,omitempty"`
}

func (p Product) Variant(id string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// LineItem resolves the product and optional selection into a cart line.
func (p Product) LineItem(qty int, sel *VariantSelection) CartItem {
	item := CartItem{
		ProductID:     p.ID,
		Name:          p.Name,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Quantity:      Count(qty),
		VendorID:      p.VendorID,
		Images:        p.Images,
		Stock:         p.Stock,
	}

	if sel == nil || sel.VariantID == "" {
		return item
	}

	item.VariantID = sel.VariantID
	if v, ok := p.Variant(sel.VariantID); ok {
		if v.Name != "" {
			item.Name = p.Name + " - " + v.Name
		}
		if v.Price != nil {
			item.Price = *v.Price
			if item.OriginalPrice == nil && p.Price != *v.Price {
				original := p.Price
				item.OriginalPrice = &original
			}
		}
		if v.Stock != nil {
			item.Stock = v.Stock
		}
		if len(v.Images) > 0 {
			item.Images = v.Images
		}
	}
	if sel.Price != nil {
		item.Price = *sel.Price
	}

	return item
}
