// Package remote talks to the storefront REST backend's cart endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/imi-storefront/internal/auth"
	"github.com/javajoker/imi-storefront/internal/models"
)

const maxResponseBytes = 4 << 20

// APIError is a non-success response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("storefront api: status %d", e.Status)
	}
	return fmt.Sprintf("storefront api: status %d: %s", e.Status, e.Message)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Tokens     auth.TokenSource
	Logger     logrus.FieldLogger
}

// Client is the cart endpoint client. Every method returns an error rather
// than panicking, whatever the backend sends.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.TokenSource
	logger     logrus.FieldLogger
}

func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		baseURL:    base.String(),
		httpClient: httpClient,
		tokens:     cfg.Tokens,
		logger:     logger.WithField("component", "remote_cart"),
	}, nil
}

func (c *Client) GetCart(ctx context.Context) (models.Cart, error) {
	data, err := c.do(ctx, http.MethodGet, "/cart", nil)
	if err != nil {
		return models.Cart{}, err
	}

	cart, failed, err := ParseCart(data)
	if err != nil {
		return models.Cart{}, err
	}
	for _, perr := range failed {
		c.logger.WithError(perr).WithField("index", perr.Index).Warn("Dropping unparseable cart item")
	}
	for _, item := range cart.Items {
		if len(item.FoldedIDs) > 0 {
			c.logger.WithFields(logrus.Fields{
				"product_id": item.ProductID,
				"variant_id": item.VariantID,
				"item_ids":   item.ServerIDs(),
			}).Warn("Backend returned duplicate cart rows, folding into one line")
		}
	}
	return cart, nil
}

// AddItem adds qty of a product line. The backend merges into an existing
// line with the same product and variant.
func (c *Client) AddItem(ctx context.Context, productID, variantID string, qty int) (*models.CartItem, error) {
	data, err := c.do(ctx, http.MethodPost, "/cart/items", addItemRequest{
		ProductID:        productID,
		ProductVariantID: variantID,
		Quantity:         qty,
	})
	if err != nil {
		return nil, err
	}
	return c.parseItem(data), nil
}

func (c *Client) UpdateItem(ctx context.Context, itemID string, qty int) (*models.CartItem, error) {
	data, err := c.do(ctx, http.MethodPut, "/cart/items", updateItemRequest{ID: itemID, Quantity: qty})
	if err != nil {
		return nil, err
	}
	return c.parseItem(data), nil
}

func (c *Client) RemoveItem(ctx context.Context, itemID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(itemID), nil)
	return err
}

func (c *Client) ClearCart(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart", nil)
	return err
}

// parseItem reads a mutation result. The mutation already succeeded, so an
// unreadable item is only logged.
func (c *Client) parseItem(data json.RawMessage) *models.CartItem {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	item, perr := ParseCartItem(0, data)
	if perr != nil {
		c.logger.WithError(perr).Debug("Mutation response carried no usable cart item")
		return nil
	}
	return &item
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read credential: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"duration":   time.Since(start).Milliseconds(),
		"request_id": requestID,
	}).Debug("Storefront API call")

	if len(bytes.TrimSpace(raw)) == 0 && resp.StatusCode < http.StatusBadRequest {
		return nil, nil
	}

	var envelope models.Envelope
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Message = envelope.Message
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response envelope: %w", decodeErr)
	}
	if envelope.Error {
		return nil, &APIError{Status: resp.StatusCode, Message: envelope.Message}
	}

	return envelope.Data, nil
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
