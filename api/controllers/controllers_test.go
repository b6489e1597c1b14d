package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-labs/storefront/api/middleware"
	"github.com/storefront-labs/storefront/internal/auth"
	"github.com/storefront-labs/storefront/internal/checkout"
	"github.com/storefront-labs/storefront/internal/products"
	"github.com/storefront-labs/storefront/internal/profiles"
	"github.com/storefront-labs/storefront/pkg/config"
	"github.com/storefront-labs/storefront/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront/pkg/errors"
)

type stubAuth struct {
	loginErr   error
	logoutTok  string
	refreshTok string
}

func (s *stubAuth) Register(_ context.Context, req auth.RegisterRequest) (*auth.SessionResponse, error) {
	return &auth.SessionResponse{AccessToken: "access", RefreshToken: "refresh", Profile: &profiles.ProfileDTO{Email: req.Email, Role: enums.RoleCustomer}}, nil
}

func (s *stubAuth) Login(_ context.Context, req auth.LoginRequest) (*auth.SessionResponse, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &auth.SessionResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (s *stubAuth) Logout(_ context.Context, token string) error {
	s.logoutTok = token
	return nil
}

func (s *stubAuth) Refresh(_ context.Context, token, refresh string) (*auth.SessionResponse, error) {
	s.refreshTok = refresh
	return &auth.SessionResponse{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
}

type stubProfiles struct {
	profile  *profiles.ProfileDTO
	list     []profiles.ProfileDTO
	lastRole *enums.Role
	err      error
}

func (s *stubProfiles) Get(_ context.Context, id uuid.UUID) (*profiles.ProfileDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

func (s *stubProfiles) List(_ context.Context, params profiles.ListParams) ([]profiles.ProfileDTO, error) {
	s.lastRole = params.Role
	return s.list, nil
}

func (s *stubProfiles) UpdateRole(_ context.Context, id uuid.UUID, role enums.Role) (*profiles.ProfileDTO, error) {
	return &profiles.ProfileDTO{ID: id, Role: role}, nil
}

type stubCheckout struct {
	err error
}

func (s stubCheckout) Checkout(_ context.Context, subject string) (*checkout.OrderDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &checkout.OrderDTO{ID: uuid.New(), Status: enums.OrderStatusPlaced}, nil
}

func (s stubCheckout) ListOrders(_ context.Context, subject string) ([]checkout.OrderDTO, error) {
	return []checkout.OrderDTO{}, nil
}

func withSubject(req *http.Request, id uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), id.String()))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func decodeError(t *testing.T, body []byte) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	return env.Error.Code
}

func TestAuthLoginSetsTokenHeader(t *testing.T) {
	handler := AuthLogin(&stubAuth{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"a@b.co","password":"pw"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "access", resp.Header().Get(accessTokenHeader))
}

func TestAuthLoginPropagatesUnauthorized(t *testing.T) {
	handler := AuthLogin(&stubAuth{loginErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"a@b.co","password":"pw"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), decodeError(t, resp.Body.Bytes()))
}

func TestAuthRegisterReturnsCreated(t *testing.T) {
	handler := AuthRegister(&stubAuth{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"email":"new@b.co","password":"long-enough"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestAuthRegisterValidatesPassword(t *testing.T) {
	handler := AuthRegister(&stubAuth{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{"email":"new@b.co","password":"short"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAuthLogoutRequiresBearer(t *testing.T) {
	svc := &stubAuth{}
	resp := httptest.NewRecorder()
	AuthLogout(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer tok")
	resp = httptest.NewRecorder()
	AuthLogout(svc, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "tok", svc.logoutTok)
}

func TestAuthRefreshPassesRefreshToken(t *testing.T) {
	svc := &stubAuth{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"r1"}`))
	req.Header.Set("Authorization", "Bearer tok")
	resp := httptest.NewRecorder()
	AuthRefresh(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "r1", svc.refreshTok)
	assert.Equal(t, "access-2", resp.Header().Get(accessTokenHeader))
}

func TestMeRequiresSubject(t *testing.T) {
	resp := httptest.NewRecorder()
	Me(&stubProfiles{}, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestMeReturnsProfile(t *testing.T) {
	id := uuid.New()
	svc := &stubProfiles{profile: &profiles.ProfileDTO{ID: id, Email: "me@b.co", Role: enums.RoleAdmin}}
	resp := httptest.NewRecorder()
	Me(svc, nil).ServeHTTP(resp, withSubject(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), id))

	require.Equal(t, http.StatusOK, resp.Code)
	var env struct {
		Data profiles.ProfileDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	assert.Equal(t, id, env.Data.ID)
}

func TestAdminListProfilesParsesRoleFilter(t *testing.T) {
	svc := &stubProfiles{list: []profiles.ProfileDTO{}}
	resp := httptest.NewRecorder()
	AdminListProfiles(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/admin/v1/profiles?role=merchant", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.lastRole)
	assert.Equal(t, enums.RoleMerchant, *svc.lastRole)

	resp = httptest.NewRecorder()
	AdminListProfiles(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/admin/v1/profiles?role=owner", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdminUpdateProfileRole(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"role":"merchant"}`))
	req = withURLParam(req, "profileId", id.String())
	resp := httptest.NewRecorder()
	AdminUpdateProfileRole(&stubProfiles{}, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	req = httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"role":"root"}`))
	req = withURLParam(req, "profileId", id.String())
	resp = httptest.NewRecorder()
	AdminUpdateProfileRole(&stubProfiles{}, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCheckoutCreatesOrder(t *testing.T) {
	resp := httptest.NewRecorder()
	Checkout(stubCheckout{}, nil).ServeHTTP(resp, withSubject(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil), uuid.New()))
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp = httptest.NewRecorder()
	failing := stubCheckout{err: pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")}
	Checkout(failing, nil).ServeHTTP(resp, withSubject(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil), uuid.New()))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

type stubProducts struct {
	products.Service
	created products.CreateProductInput
}

func (s *stubProducts) Create(_ context.Context, merchantID uuid.UUID, input products.CreateProductInput) (products.ProductDTO, error) {
	s.created = input
	return products.ProductDTO{ID: uuid.New(), MerchantID: merchantID, Name: input.Name, UnitPrice: input.UnitPrice}, nil
}

func (s *stubProducts) List(_ context.Context, params products.ListParams) (products.ListResult, error) {
	return products.ListResult{Items: []products.ProductDTO{}, Limit: params.Limit, Offset: params.Offset}, nil
}

func TestMerchantCreateProduct(t *testing.T) {
	svc := &stubProducts{}
	req := httptest.NewRequest(http.MethodPost, "/api/merchant/v1/products", strings.NewReader(`{"name":"  Mug ","unit_price":"12.50"}`))
	resp := httptest.NewRecorder()
	MerchantCreateProduct(svc, nil).ServeHTTP(resp, withSubject(req, uuid.New()))

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "Mug", svc.created.Name)
	assert.Equal(t, "12.5", svc.created.UnitPrice.String())
}

func TestPublicListProductsValidatesPaging(t *testing.T) {
	svc := &stubProducts{}
	resp := httptest.NewRecorder()
	PublicListProducts(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/public/products?limit=5", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	PublicListProducts(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/public/products?limit=500", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPublicGetProductRejectsBadID(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "productId", "nope")
	resp := httptest.NewRecorder()
	PublicGetProduct(&stubProducts{}, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

type failingPinger struct{ err error }

func (f failingPinger) Ping(context.Context) error { return f.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "dev"}}

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": failingPinger{}}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"redis": failingPinger{err: errors.New("down")}}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestNotAuthorized(t *testing.T) {
	resp := httptest.NewRecorder()
	NotAuthorized().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/not-authorized", nil))
	assert.Equal(t, http.StatusForbidden, resp.Code)
}
