package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/imi-storefront/internal/models"
	"github.com/javajoker/imi-storefront/internal/remote/remotetest"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

type ClientTestSuite struct {
	suite.Suite
	backend *remotetest.Backend
	server  *httptest.Server
	client  *Client
}

func (s *ClientTestSuite) SetupTest() {
	s.backend = remotetest.NewBackend(
		remotetest.Product{ID: "P1", Name: "Mug", Price: 19.99},
		remotetest.Product{ID: "P2", Name: "Tee", Price: 5},
	)
	s.server = s.backend.Server()

	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	client, err := NewClient(Config{BaseURL: s.server.URL + "/", Tokens: staticToken("tok"), Logger: logger})
	s.Require().NoError(err)
	s.client = client
}

func (s *ClientTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientTestSuite) TestAddMergesServerSide() {
	ctx := context.Background()

	item, err := s.client.AddItem(ctx, "P1", "", 2)
	s.Require().NoError(err)
	s.Require().NotNil(item)
	s.Equal(2, item.Quantity.Int())
	s.Equal(19.99, item.Price.Float64())

	_, err = s.client.AddItem(ctx, "P1", "", 3)
	s.Require().NoError(err)
	_, err = s.client.AddItem(ctx, "P1", "blue", 1)
	s.Require().NoError(err)

	cart, err := s.client.GetCart(ctx)
	s.Require().NoError(err)
	s.Len(cart.Items, 2)

	line, ok := cart.Find(models.CompositeID{ProductID: "P1"})
	s.Require().True(ok)
	s.Equal(5, line.Quantity.Int())
	s.Equal("Mug", line.Name)
	s.NotEmpty(line.ID)
}

func (s *ClientTestSuite) TestUpdateRemoveClear() {
	ctx := context.Background()
	added, err := s.client.AddItem(ctx, "P2", "", 1)
	s.Require().NoError(err)

	updated, err := s.client.UpdateItem(ctx, added.ID, 4)
	s.Require().NoError(err)
	s.Equal(4, updated.Quantity.Int())

	s.Require().NoError(s.client.RemoveItem(ctx, added.ID))
	cart, err := s.client.GetCart(ctx)
	s.Require().NoError(err)
	s.True(cart.IsEmpty())

	_, err = s.client.AddItem(ctx, "P1", "", 1)
	s.Require().NoError(err)
	s.Require().NoError(s.client.ClearCart(ctx))
	s.Empty(s.backend.Quantities("tok"))
}

func (s *ClientTestSuite) TestErrorsAreReturned() {
	err := s.client.RemoveItem(context.Background(), "missing")
	var apiErr *APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusNotFound, apiErr.Status)
	s.Equal("item not found", apiErr.Message)

	anonymous, err := NewClient(Config{BaseURL: s.server.URL, Tokens: staticToken("")})
	s.Require().NoError(err)
	_, err = anonymous.GetCart(context.Background())
	s.True(IsUnauthorized(err))
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func TestEnvelopeErrorFlagOn200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":true,"message":"cart locked"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	err = client.ClearCart(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "cart locked", apiErr.Message)
}

func TestEmptyDataIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	cart, err := client.GetCart(context.Background())
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.NoError(t, client.ClearCart(context.Background()))
}

func TestGarbageResponseIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.GetCart(context.Background())
	assert.Error(t, err)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestParseCartItem(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantErr   string
		wantPrice float64
		wantID    models.CompositeID
		wantOrig  float64
	}{
		{
			name:      "row price wins",
			raw:       `{"id":7,"productId":"P1","quantity":"2","price":"3.50","product":{"price":9}}`,
			wantPrice: 3.5,
			wantID:    models.CompositeID{ProductID: "P1"},
			wantOrig:  9,
		},
		{
			name:      "variant price over product price",
			raw:       `{"id":"a","productId":12,"productVariantId":4,"quantity":1,"product":{"name":"Tee","price":"20"},"variant":{"id":4,"name":"XL","price":"25"}}`,
			wantPrice: 25,
			wantID:    models.CompositeID{ProductID: "12", VariantID: "4"},
			wantOrig:  20,
		},
		{
			name:      "compare-at price",
			raw:       `{"productId":"P1","quantity":1,"product":{"price":10,"compareAtPrice":12}}`,
			wantPrice: 10,
			wantID:    models.CompositeID{ProductID: "P1"},
			wantOrig:  12,
		},
		{
			name:    "missing product id",
			raw:     `{"quantity":1,"price":1}`,
			wantErr: "productid",
		},
		{
			name:    "zero quantity",
			raw:     `{"productId":"P1","quantity":0,"price":1}`,
			wantErr: "quantity",
		},
		{
			name:    "no price anywhere",
			raw:     `{"productId":"P1","quantity":1,"product":{"name":"x"}}`,
			wantErr: "price",
		},
		{
			name:    "not an object",
			raw:     `"P1"`,
			wantErr: "item",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, perr := ParseCartItem(3, json.RawMessage(tt.raw))
			if tt.wantErr != "" {
				require.NotNil(t, perr)
				assert.Equal(t, 3, perr.Index)
				assert.Equal(t, tt.wantErr, perr.Field)
				return
			}
			require.Nil(t, perr)
			assert.Equal(t, tt.wantPrice, item.Price.Float64())
			assert.Equal(t, tt.wantID, item.Key())
			require.NotNil(t, item.OriginalPrice)
			assert.Equal(t, tt.wantOrig, item.OriginalPrice.Float64())
		})
	}
}

func TestFoldRows(t *testing.T) {
	cart := FoldRows([]models.CartItem{
		{ID: "7", ProductID: "P1", Quantity: 1},
		{ID: "8", ProductID: "P1", VariantID: "XL", Quantity: 1},
		{ID: "9", ProductID: "P1", Quantity: 2},
		{ID: "10", ProductID: "P1", Quantity: 1},
	})
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 4, cart.Items[0].Quantity.Int())
	assert.Equal(t, []string{"7", "9", "10"}, cart.Items[0].ServerIDs())
	assert.Empty(t, cart.Items[1].FoldedIDs)

	clone := cart.Clone()
	clone.Items[0].FoldedIDs[0] = "x"
	assert.Equal(t, "9", cart.Items[0].FoldedIDs[0])
}

func TestParseCartDropsBadRows(t *testing.T) {
	cart, failed, err := ParseCart(json.RawMessage(`{"items":[
		{"id":1,"productId":"P1","quantity":1,"price":2},
		{"id":2,"quantity":1,"price":2},
		{"id":3,"productId":"P1","quantity":2,"price":2}
	]}`))
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Index)

	require.Len(t, cart.Items, 1, "duplicate identities fold into one line")
	assert.Equal(t, 3, cart.Items[0].Quantity.Int())
	assert.Equal(t, "1", cart.Items[0].ID)
	assert.Equal(t, []string{"3"}, cart.Items[0].FoldedIDs)
	assert.Equal(t, []string{"1", "3"}, cart.Items[0].ServerIDs())

	cart, failed, err = ParseCart(nil)
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.True(t, cart.IsEmpty())
}
