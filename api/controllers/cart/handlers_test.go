package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront/api/middleware"
	cartsvc "github.com/storefront-labs/storefront/internal/cart"
)

type stubCartService struct {
	cartsvc.Service
	view        cartsvc.View
	lastProduct string
	lastQty     int
	cleared     bool
}

func (s *stubCartService) Get(context.Context, string) (cartsvc.View, error) {
	return s.view, nil
}

func (s *stubCartService) AddItem(_ context.Context, _ string, productID string, qty int) (cartsvc.View, error) {
	s.lastProduct, s.lastQty = productID, qty
	return s.view, nil
}

func (s *stubCartService) UpdateQuantity(_ context.Context, _ string, productID string, qty int) (cartsvc.View, error) {
	s.lastProduct, s.lastQty = productID, qty
	return s.view, nil
}

func (s *stubCartService) RemoveItem(_ context.Context, _ string, productID string) (cartsvc.View, error) {
	s.lastProduct = productID
	return s.view, nil
}

func (s *stubCartService) Clear(context.Context, string) error {
	s.cleared = true
	return nil
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func withProduct(req *http.Request, id string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("productId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCartFetchSuccess(t *testing.T) {
	svc := &stubCartService{view: cartsvc.View{
		Items:      []cartsvc.Item{{ID: "p1", Name: "mug", UnitPrice: decimal.NewFromInt(3), Quantity: 2}},
		TotalItems: 2,
		TotalPrice: decimal.NewFromInt(6),
	}}
	resp := httptest.NewRecorder()
	CartFetch(svc, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)))

	require.Equal(t, http.StatusOK, resp.Code)
	var env struct {
		Data cartsvc.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	assert.Equal(t, 2, env.Data.TotalItems)
	assert.True(t, env.Data.TotalPrice.Equal(decimal.NewFromInt(6)))
}

func TestCartFetchRequiresSubject(t *testing.T) {
	resp := httptest.NewRecorder()
	CartFetch(&stubCartService{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCartAddItemValidatesBody(t *testing.T) {
	svc := &stubCartService{}
	productID := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"`+productID+`","quantity":3}`))
	resp := httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, authed(req))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, productID, svc.lastProduct)
	assert.Equal(t, 3, svc.lastQty)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"nope","quantity":3}`))
	resp = httptest.NewRecorder()
	CartAddItem(svc, nil).ServeHTTP(resp, authed(req))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCartUpdateItemAcceptsZero(t *testing.T) {
	svc := &stubCartService{}
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"quantity":0}`))
	resp := httptest.NewRecorder()
	CartUpdateItem(svc, nil).ServeHTTP(resp, withProduct(authed(req), "p1"))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "p1", svc.lastProduct)
	assert.Equal(t, 0, svc.lastQty)
}

func TestCartAddItemRejectsOutOfRangeQuantity(t *testing.T) {
	productID := uuid.NewString()
	for _, qty := range []string{"0", "-2", "1000"} {
		svc := &stubCartService{}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items",
			strings.NewReader(`{"product_id":"`+productID+`","quantity":`+qty+`}`))
		resp := httptest.NewRecorder()
		CartAddItem(svc, nil).ServeHTTP(resp, authed(req))
		assert.Equal(t, http.StatusBadRequest, resp.Code, "quantity %s", qty)
		assert.Empty(t, svc.lastProduct, "quantity %s reached the service", qty)
	}
}

func TestCartUpdateItemRejectsQuantityAboveMax(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"quantity":1000}`))
	resp := httptest.NewRecorder()
	CartUpdateItem(&stubCartService{}, nil).ServeHTTP(resp, withProduct(authed(req), "p1"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCartUpdateItemRequiresQuantity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	CartUpdateItem(&stubCartService{}, nil).ServeHTTP(resp, withProduct(authed(req), "p1"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCartRemoveAndClear(t *testing.T) {
	svc := &stubCartService{}
	resp := httptest.NewRecorder()
	CartRemoveItem(svc, nil).ServeHTTP(resp, withProduct(authed(httptest.NewRequest(http.MethodDelete, "/", nil)), "p9"))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "p9", svc.lastProduct)

	resp = httptest.NewRecorder()
	CartClear(svc, nil).ServeHTTP(resp, authed(httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil)))
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.True(t, svc.cleared)
}
