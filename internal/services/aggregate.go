// internal/services/aggregate.go
package services

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/javajoker/imi-storefront/internal/models"
)

// CalculateTotals derives the cart totals. It is pure and recomputed on
// every read; totals are never cached apart from the item list.
// totalPrice is the exact decimal sum of price × quantity.
func CalculateTotals(items []models.CartItem) models.Totals {
	var (
		count int
		total = decimal.Zero
	)
	for _, item := range items {
		qty := int64(math.Trunc(Coerce(item.Quantity)))
		if qty <= 0 {
			continue
		}
		count += int(qty)
		price := decimal.NewFromFloat(Coerce(item.Price))
		total = total.Add(price.Mul(decimal.NewFromInt(qty)))
	}
	return models.Totals{
		TotalItems: count,
		TotalPrice: total.InexactFloat64(),
	}
}

// Coerce converts a loosely typed value to a finite number. Numeric strings
// are parsed; anything non-numeric is zero.
func Coerce(v interface{}) float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case models.Number:
		f = float64(n)
	case models.Count:
		f = float64(n)
	case *models.Number:
		if n == nil {
			return 0
		}
		f = float64(*n)
	case *models.Count:
		if n == nil {
			return 0
		}
		f = float64(*n)
	case string:
		return models.ParseNumeric(n)
	case []byte:
		return models.ParseLenient(n)
	case interface{ String() string }:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n.String()), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
