package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/javajoker/imi-storefront/internal/models"
	"github.com/javajoker/imi-storefront/internal/utils"
)

// ParseError describes a backend cart row that could not be turned into a
// CartItem.
type ParseError struct {
	Index int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cart item %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errMissingPrice = errors.New("no price on item, product or variant")

// flexID accepts ids encoded as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type wireProduct struct {
	ID             flexID         `json:"id"`
	Name           string         `json:"name"`
	Title          string         `json:"title"`
	Price          *models.Number `json:"price"`
	OriginalPrice  *models.Number `json:"originalPrice"`
	CompareAtPrice *models.Number `json:"compareAtPrice"`
	VendorID       flexID         `json:"vendorId"`
	Images         []string       `json:"images"`
	Stock          *models.Count  `json:"stock"`
}

type wireVariant struct {
	ID     flexID         `json:"id"`
	Name   string         `json:"name"`
	Price  *models.Number `json:"price"`
	Stock  *models.Count  `json:"stock"`
	Images []string       `json:"images"`
}

type wireCartItem struct {
	ID               flexID         `json:"id"`
	ProductID        flexID         `json:"productId" validate:"required"`
	ProductVariantID flexID         `json:"productVariantId"`
	Quantity         models.Count   `json:"quantity" validate:"gte=1"`
	Price            *models.Number `json:"price"`
	Product          *wireProduct   `json:"product"`
	Variant          *wireVariant   `json:"variant"`
	ProductVariant   *wireVariant   `json:"productVariant"`
}

type wireCart struct {
	Items []json.RawMessage `json:"items"`
}

type addItemRequest struct {
	ProductID        string `json:"productId"`
	ProductVariantID string `json:"productVariantId,omitempty"`
	Quantity         int    `json:"quantity"`
}

type updateItemRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// ParseCart decodes the data member of GET /cart. Rows that fail to parse
// are returned as ParseErrors and left out of the cart.
func ParseCart(data json.RawMessage) (models.Cart, []*ParseError, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return models.Cart{}, nil, nil
	}

	var wc wireCart
	if err := json.Unmarshal(data, &wc); err != nil {
		return models.Cart{}, nil, fmt.Errorf("failed to decode cart: %w", err)
	}

	var (
		rows   []models.CartItem
		failed []*ParseError
	)
	for i, raw := range wc.Items {
		item, perr := ParseCartItem(i, raw)
		if perr != nil {
			failed = append(failed, perr)
			continue
		}
		rows = append(rows, item)
	}
	return FoldRows(rows), failed, nil
}

// FoldRows merges rows sharing a composite id into the first such row. The
// quantities add up and the later rows' ids are kept in FoldedIDs.
func FoldRows(rows []models.CartItem) models.Cart {
	var cart models.Cart
	index := make(map[models.CompositeID]int, len(rows))
	for _, row := range rows {
		i, ok := index[row.Key()]
		if !ok {
			index[row.Key()] = len(cart.Items)
			cart.Items = append(cart.Items, row)
			continue
		}
		line := &cart.Items[i]
		line.Quantity += row.Quantity
		line.FoldedIDs = append(line.FoldedIDs, row.ServerIDs()...)
		if line.ID == "" && len(line.FoldedIDs) > 0 {
			line.ID, line.FoldedIDs = line.FoldedIDs[0], line.FoldedIDs[1:]
		}
	}
	return cart
}

// ParseCartItem validates one backend row and resolves its unit price:
// the row's own price, then the variant price, then the product price.
func ParseCartItem(index int, raw json.RawMessage) (models.CartItem, *ParseError) {
	var w wireCartItem
	if err := json.Unmarshal(raw, &w); err != nil {
		return models.CartItem{}, &ParseError{Index: index, Field: "item", Err: err}
	}

	if err := utils.ValidateStruct(&w); err != nil {
		field := "item"
		if verrs := utils.GetValidationErrors(err); len(verrs) > 0 {
			field = verrs[0].Field
		}
		return models.CartItem{}, &ParseError{Index: index, Field: field, Err: err}
	}

	variant := w.Variant
	if variant == nil {
		variant = w.ProductVariant
	}
	product := w.Product
	if product == nil {
		product = &wireProduct{}
	}

	item := models.CartItem{
		ID:        string(w.ID),
		ProductID: string(w.ProductID),
		VariantID: string(w.ProductVariantID),
		Name:      product.Name,
		Quantity:  w.Quantity,
		VendorID:  string(product.VendorID),
		Images:    product.Images,
		Stock:     product.Stock,
	}
	if item.Name == "" {
		item.Name = product.Title
	}
	if item.VariantID == "" && variant != nil {
		item.VariantID = string(variant.ID)
	}

	var price *models.Number
	switch {
	case w.Price != nil:
		price = w.Price
	case variant != nil && variant.Price != nil:
		price = variant.Price
	case product.Price != nil:
		price = product.Price
	}
	if price == nil {
		return models.CartItem{}, &ParseError{Index: index, Field: "price", Err: errMissingPrice}
	}
	item.Price = *price

	switch {
	case product.OriginalPrice != nil:
		item.OriginalPrice = product.OriginalPrice
	case product.CompareAtPrice != nil:
		item.OriginalPrice = product.CompareAtPrice
	case product.Price != nil && *product.Price != item.Price:
		item.OriginalPrice = product.Price
	}

	if variant != nil {
		if variant.Name != "" && item.Name != "" {
			item.Name = item.Name + " - " + variant.Name
		}
		if variant.Stock != nil {
			item.Stock = variant.Stock
		}
		if len(variant.Images) > 0 {
			item.Images = variant.Images
		}
	}

	return item, nil
}
