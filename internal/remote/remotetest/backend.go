// Package remotetest provides an in-memory storefront backend implementing
// the cart REST contract, for tests.
package remotetest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

type Product struct {
	ID    string
	Name  string
	Price float64
}

type line struct {
	ID               string `json:"id"`
	ProductID        string `json:"productId"`
	ProductVariantID string `json:"productVariantId,omitempty"`
	Quantity         int    `json:"quantity"`
}

// Backend holds one cart per bearer token.
type Backend struct {
	mu       sync.Mutex
	products map[string]Product
	carts    map[string][]line
	nextID   int
	calls    []string
	failAdd  map[string]bool
	failAll  bool
}

func NewBackend(products ...Product) *Backend {
	b := &Backend{
		products: make(map[string]Product),
		carts:    make(map[string][]line),
		failAdd:  make(map[string]bool),
	}
	for _, p := range products {
		b.products[p.ID] = p
	}
	return b
}

// Server starts an httptest server; callers must Close it.
func (b *Backend) Server() *httptest.Server {
	return httptest.NewServer(b.Router())
}

func (b *Backend) Router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.Use(func(c *gin.Context) {
		b.mu.Lock()
		b.calls = append(b.calls, c.Request.Method+" "+c.Request.URL.Path)
		failAll := b.failAll
		b.mu.Unlock()

		if failAll {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": true, "message": "unavailable"})
			return
		}
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": true, "message": "authentication required"})
			return
		}
		c.Set("token", token)
		c.Next()
	})

	r.GET("/cart", b.getCart)
	r.POST("/cart/items", b.addItem)
	r.PUT("/cart/items", b.updateItem)
	r.DELETE("/cart/items/:id", b.removeItem)
	r.DELETE("/cart", b.clearCart)
	return r
}

// Seed replaces the cart stored for token.
func (b *Backend) Seed(token string, items map[string]int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.carts[token] = nil
	for productID, qty := range items {
		b.nextID++
		b.carts[token] = append(b.carts[token], line{ID: fmt.Sprint(b.nextID), ProductID: productID, Quantity: qty})
	}
}

// Quantities returns product-or-variant key to quantity for token.
func (b *Backend) Quantities(token string) map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int)
	for _, l := range b.carts[token] {
		key := l.ProductID
		if l.ProductVariantID != "" {
			key += ":" + l.ProductVariantID
		}
		out[key] = l.Quantity
	}
	return out
}

func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *Backend) ResetCalls() {
	b.mu.Lock()
	b.calls = nil
	b.mu.Unlock()
}

// FailAdd makes POST /cart/items fail for productID.
func (b *Backend) FailAdd(productID string) {
	b.mu.Lock()
	b.failAdd[productID] = true
	b.mu.Unlock()
}

// SetUnavailable makes every request fail with 503.
func (b *Backend) SetUnavailable(down bool) {
	b.mu.Lock()
	b.failAll = down
	b.mu.Unlock()
}

func (b *Backend) render(l line) gin.H {
	p, ok := b.products[l.ProductID]
	if !ok {
		p = Product{ID: l.ProductID, Name: l.ProductID, Price: 1}
	}
	out := gin.H{
		"id":        l.ID,
		"productId": l.ProductID,
		"quantity":  l.Quantity,
		"product": gin.H{
			"id":    p.ID,
			"name":  p.Name,
			"price": fmt.Sprintf("%.2f", p.Price),
		},
	}
	if l.ProductVariantID != "" {
		out["productVariantId"] = l.ProductVariantID
	}
	return out
}

func (b *Backend) getCart(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := make([]gin.H, 0)
	for _, l := range b.carts[c.GetString("token")] {
		items = append(items, b.render(l))
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"items": items}, "error": false})
}

func (b *Backend) addItem(c *gin.Context) {
	var req line
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" || req.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": "invalid item"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failAdd[req.ProductID] {
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "add failed"})
		return
	}

	token := c.GetString("token")
	for i, l := range b.carts[token] {
		if l.ProductID == req.ProductID && l.ProductVariantID == req.ProductVariantID {
			b.carts[token][i].Quantity += req.Quantity
			c.JSON(http.StatusOK, gin.H{"data": b.render(b.carts[token][i]), "error": false})
			return
		}
	}

	b.nextID++
	req.ID = fmt.Sprint(b.nextID)
	b.carts[token] = append(b.carts[token], req)
	c.JSON(http.StatusCreated, gin.H{"data": b.render(req), "error": false})
}

func (b *Backend) updateItem(c *gin.Context) {
	var req struct {
		ID       string `json:"id"`
		Quantity int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": "invalid item"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	token := c.GetString("token")
	for i, l := range b.carts[token] {
		if l.ID == req.ID {
			b.carts[token][i].Quantity = req.Quantity
			c.JSON(http.StatusOK, gin.H{"data": b.render(b.carts[token][i]), "error": false})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": true, "message": "item not found"})
}

func (b *Backend) removeItem(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	token := c.GetString("token")
	lines := b.carts[token]
	for i, l := range lines {
		if l.ID == c.Param("id") {
			b.carts[token] = append(lines[:i], lines[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": l.ID}, "message": "removed", "error": false})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": true, "message": "item not found"})
}

func (b *Backend) clearCart(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.carts, c.GetString("token"))
	c.JSON(http.StatusOK, gin.H{"data": gin.H{}, "message": "cleared", "error": false})
}
