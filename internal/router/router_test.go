package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/imi-storefront/internal/auth"
	"github.com/javajoker/imi-storefront/internal/config"
	"github.com/javajoker/imi-storefront/internal/handlers"
	"github.com/javajoker/imi-storefront/internal/i18n"
	"github.com/javajoker/imi-storefront/internal/models"
	"github.com/javajoker/imi-storefront/internal/remote"
	"github.com/javajoker/imi-storefront/internal/remote/remotetest"
	"github.com/javajoker/imi-storefront/internal/services"
	"github.com/javajoker/imi-storefront/internal/storage"
)

const testSecret = "router-test-secret"

type envelope[T any] struct {
	Data    T               `json:"data"`
	Message string          `json:"message"`
	Error   bool            `json:"error"`
	Details json.RawMessage `json:"details"`
}

type RouterTestSuite struct {
	suite.Suite
	backend *remotetest.Backend
	server  *httptest.Server
	store   *storage.MemoryStorage
	local   *services.LocalCartStore
	cart    *services.CartService
	router  *gin.Engine
}

func (s *RouterTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(i18n.Initialize("en"))
}

func (s *RouterTestSuite) SetupTest() {
	logger, _ := test.NewNullLogger()

	s.backend = remotetest.NewBackend(
		remotetest.Product{ID: "P1", Name: "Mug", Price: 19.99},
		remotetest.Product{ID: "P2", Name: "Tee", Price: 5},
	)
	s.server = s.backend.Server()

	s.store = storage.NewMemoryStorage()
	tokens := auth.NewStorageTokenSource(s.store, "storefront:token")
	decoder := auth.NewDecoder(testSecret)

	observer, err := auth.NewObserver(auth.ObserverConfig{
		Source:       tokens,
		Decoder:      decoder,
		PollInterval: time.Hour,
		Logger:       logger,
	})
	s.Require().NoError(err)

	client, err := remote.NewClient(remote.Config{BaseURL: s.server.URL, Tokens: tokens, Logger: logger})
	s.Require().NoError(err)

	s.local = services.NewLocalCartStore(s.store, "storefront:cart", logger)
	s.cart, err = services.NewCartService(services.CartServiceConfig{
		Local:      s.local,
		Remote:     client,
		Reconciler: services.NewReconciler(s.local, client, services.MergePolicyRetainFailed, logger),
		Observer:   observer,
		Logger:     logger,
	})
	s.Require().NoError(err)

	cfg := &config.Config{I18n: config.I18nConfig{DefaultLocale: "en"}}
	s.router = Initialize(cfg, Dependencies{
		CartService: s.cart,
		Observer:    observer,
		Tokens:      tokens,
		Decoder:     decoder,
		Logger:      logger,
	})
}

func (s *RouterTestSuite) TearDownTest() {
	s.cart.Close()
	s.server.Close()
}

func (s *RouterTestSuite) token(userID string) string {
	claims := auth.Claims{
		UserID:   userID,
		Username: "shopper",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	s.Require().NoError(err)
	return signed
}

func (s *RouterTestSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterTestSuite) snapshot(w *httptest.ResponseRecorder) envelope[services.Snapshot] {
	var resp envelope[services.Snapshot]
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func addBody(productID string, price float64, qty int) gin.H {
	return gin.H{
		"product":  gin.H{"id": productID, "name": productID, "price": price},
		"quantity": qty,
	}
}

func (s *RouterTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"state":"anonymous_local"`)
}

func (s *RouterTestSuite) TestAnonymousCartFlow() {
	w := s.do(http.MethodPost, "/v1/cart/items", addBody("P1", 19.99, 2))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	resp := s.snapshot(w)
	s.Equal("Item added to cart", resp.Message)
	s.Equal(2, resp.Data.TotalItems)
	s.InDelta(39.98, resp.Data.TotalPrice, 0.0001)
	s.True(resp.Data.DrawerOpen)
	s.Equal(models.StateAnonymousLocal, resp.Data.State)

	w = s.do(http.MethodPut, "/v1/cart/items/P1", gin.H{"quantity": 5})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(5, s.snapshot(w).Data.TotalItems)

	w = s.do(http.MethodPut, "/v1/cart/drawer", gin.H{"open": false})
	s.Require().Equal(http.StatusOK, w.Code)
	s.False(s.snapshot(w).Data.DrawerOpen)

	w = s.do(http.MethodPut, "/v1/cart/items/P1", gin.H{"quantity": 0})
	s.Require().Equal(http.StatusOK, w.Code)
	resp = s.snapshot(w)
	s.Equal("Item removed from cart", resp.Message)
	s.Empty(resp.Data.Items)

	s.Empty(s.backend.Calls(), "anonymous carts never reach the backend")
}

func (s *RouterTestSuite) TestValidationAndNotFound() {
	w := s.do(http.MethodPost, "/v1/cart/items", addBody("P1", 1, 0))
	s.Equal(http.StatusBadRequest, w.Code)
	s.True(s.snapshot(w).Error)

	w = s.do(http.MethodPost, "/v1/cart/items", gin.H{"product": gin.H{"name": "x"}, "quantity": 1})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodDelete, "/v1/cart/items/missing", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("Cart item not found", s.snapshot(w).Message)

	w = s.do(http.MethodPut, "/v1/cart/items/:V1", gin.H{"quantity": 1})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/v1/cart/items/P1", gin.H{})
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/session", gin.H{"token": "not-a-jwt"})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterTestSuite) TestLoginMergesAndLogoutSnapshots() {
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/v1/cart/items", addBody("P1", 19.99, 2)).Code)
	token := s.token("u1")
	s.backend.Seed(token, map[string]int{"P2": 1})

	w := s.do(http.MethodPost, "/v1/session", gin.H{"token": token})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var session envelope[handlers.SessionResponse]
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &session))
	s.Equal(auth.StatusAuthenticated, session.Data.Status)
	s.Equal("u1", session.Data.UserID)
	s.Equal(models.StateAuthenticatedRemote, session.Data.Cart.State)
	s.Equal(3, session.Data.Cart.TotalItems)

	s.Equal(map[string]int{"P1": 2, "P2": 1}, s.backend.Quantities(token))
	s.True(s.local.Load().IsEmpty())

	w = s.do(http.MethodPost, "/v1/cart/items", addBody("P2", 5, 1))
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(map[string]int{"P1": 2, "P2": 2}, s.backend.Quantities(token))

	s.backend.ResetCalls()
	w = s.do(http.MethodDelete, "/v1/session", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &session))
	s.Equal(auth.StatusAnonymous, session.Data.Status)
	s.Equal(models.StateAnonymousLocal, session.Data.Cart.State)
	s.Equal(4, session.Data.Cart.TotalItems)

	s.Empty(s.backend.Calls(), "logout leaves the remote cart alone")
	s.Equal(map[string]int{"P1": 2, "P2": 2}, s.backend.Quantities(token))
	s.Equal(4, s.cart.TotalItems())
}

func (s *RouterTestSuite) TestBackendOutage() {
	token := s.token("u2")
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/v1/session", gin.H{"token": token}).Code)

	s.backend.SetUnavailable(true)
	w := s.do(http.MethodPost, "/v1/cart/items", addBody("P1", 19.99, 1))
	s.Require().Equal(http.StatusOK, w.Code)
	resp := s.snapshot(w)
	s.True(resp.Data.Dirty)
	s.Equal(1, resp.Data.TotalItems)
	s.Equal("Saved on this device, will sync when the store is reachable", resp.Message)

	w = s.do(http.MethodPost, "/v1/cart/sync", nil)
	s.Equal(http.StatusBadGateway, w.Code)

	s.backend.SetUnavailable(false)
	w = s.do(http.MethodPost, "/v1/cart/sync", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	resp = s.snapshot(w)
	s.False(resp.Data.Dirty)
	s.Empty(resp.Data.Items)
}

func (s *RouterTestSuite) TestLocalizedMessages() {
	req := httptest.NewRequest(http.MethodDelete, "/v1/cart", nil)
	req.Header.Set("Accept-Language", "zh-TW")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)
	s.Equal("已清空購物車", s.snapshot(w).Message)
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
