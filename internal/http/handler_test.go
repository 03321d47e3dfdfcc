package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "owner@shop.test"
	adminPassword = "s3cret-pass"
)

type testServer struct {
	handler http.Handler
	store   *repository.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	svc := service.NewOrderService(store, identity.ContextProvider{})
	auth := identity.NewAuthenticator(identity.Settings{
		Secret:        "test-secret-with-enough-bytes",
		Issuer:        "storefront",
		Audience:      "storefront-admin",
		TTL:           time.Hour,
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
	})
	router := NewRouter(
		RouterConfig{RequestTimeout: 5 * time.Second},
		NewOrderHandler(svc, 5*time.Second),
		NewAdminHandler(svc, auth, 5*time.Second),
		auth,
	)
	return &testServer{handler: router, store: store}
}

func (s *testServer) seed(t *testing.T, p *domain.Product) string {
	t.Helper()
	id, err := s.store.CreateProduct(context.Background(), p)
	require.NoError(t, err)
	return id
}

func (s *testServer) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/admin/token", "", TokenRequestDTO{Email: adminEmail, Password: adminPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	var tok TokenResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tok))
	require.Equal(t, "Bearer", tok.TokenType)
	require.Equal(t, int64(3600), tok.ExpiresIn)
	return tok.AccessToken
}

func shirt(stock int) *domain.Product {
	return &domain.Product{
		Name:         "Linen Shirt",
		Color:        "White",
		Price:        decimal.NewNullDecimal(decimal.NewFromInt(100)),
		Stock:        stock,
		Availability: domain.AvailabilityReady,
	}
}

func orderBody(productID string, qty int) PlaceOrderRequestDTO {
	return PlaceOrderRequestDTO{
		Items:          []OrderItemRequestDTO{{ProductID: productID, Quantity: qty}},
		CustomerName:   "Rahim",
		Phone:          "01800000000",
		Address:        "12 Lake Road, Dhaka",
		PaymentMethod:  string(domain.PaymentCashOnDelivery),
		PolicyAccepted: true,
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestPlaceOrder_Created(t *testing.T) {
	s := newTestServer(t)
	id := s.seed(t, shirt(3))

	rec := s.do(http.MethodPost, "/api/v1/orders", "", orderBody(id, 2))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp PlaceOrderResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.OrderID)
	assert.True(t, resp.DeliveryFee.Equal(decimal.NewFromInt(110)))
	assert.True(t, resp.Total.Equal(decimal.NewFromInt(310)))
	assert.True(t, resp.Paid.IsZero())
	assert.True(t, resp.Due.Equal(decimal.NewFromInt(310)))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	p, err := s.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)
}

func TestPlaceOrder_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	ready := s.seed(t, shirt(1))
	upcoming := s.seed(t, &domain.Product{Name: "Winter Coat", Availability: domain.AvailabilityUpcoming})

	noPolicy := orderBody(ready, 1)
	noPolicy.PolicyAccepted = false

	wallet := orderBody(ready, 1)
	wallet.PaymentMethod = string(domain.PaymentMobileWallet)

	tests := []struct {
		name   string
		body   any
		status int
		kind   string
	}{
		{"malformed json", `{"items":`, http.StatusBadRequest, string(service.KindValidation)},
		{"unknown field", `{"basket":[]}`, http.StatusBadRequest, string(service.KindValidation)},
		{"policy not accepted", noPolicy, http.StatusBadRequest, string(service.KindPolicyNotAccepted)},
		{"wallet without transaction id", wallet, http.StatusBadRequest, string(service.KindPaymentInfoMissing)},
		{"unknown product", orderBody("nope", 1), http.StatusNotFound, string(service.KindProductNotFound)},
		{"upcoming product", orderBody(upcoming, 1), http.StatusConflict, string(service.KindProductUnavailable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/v1/orders", "", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, decodeError(t, rec).ErrorKind)
		})
	}
}

func TestPlaceOrder_InsufficientStockCarriesRemaining(t *testing.T) {
	s := newTestServer(t)
	id := s.seed(t, shirt(2))

	rec := s.do(http.MethodPost, "/api/v1/orders", "", orderBody(id, 5))

	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, string(service.KindInsufficientStock), resp.ErrorKind)
	require.NotNil(t, resp.Details)
	require.NotNil(t, resp.Details.RemainingStock)
	assert.Equal(t, 2, *resp.Details.RemainingStock)
}

func TestLookupStatus(t *testing.T) {
	s := newTestServer(t)
	id := s.seed(t, shirt(3))

	rec := s.do(http.MethodGet, "/api/v1/orders/status/TXN-77", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(service.KindOrderNotFound), decodeError(t, rec).ErrorKind)

	body := orderBody(id, 1)
	body.PaymentMethod = string(domain.PaymentMobileWallet)
	body.TransactionID = "TXN-77"
	rec = s.do(http.MethodPost, "/api/v1/orders", "", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/orders/status/TXN-77", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view domain.StatusView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, domain.OrderStatusPending, view.Status)
	assert.Equal(t, "TXN-77", view.TransactionID)
	assert.True(t, view.Due.IsZero())
}

func TestAdmin_RequiresAdminToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/admin/products", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(service.KindForbidden), decodeError(t, rec).ErrorKind)

	rec = s.do(http.MethodGet, "/api/v1/admin/products", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = s.do(http.MethodPost, "/api/v1/admin/token", "", TokenRequestDTO{Email: adminEmail, Password: "guess"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_ProductAndOrderFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.adminToken(t)

	rec := s.do(http.MethodPost, "/api/v1/admin/products", token, `{
		"name": "Muslin Saree", "color": "Red", "price": null,
		"stock": 0, "availability": "PreOrder"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created ProductDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotEmpty(t, created.ID)
	assert.Nil(t, created.Price)
	assert.Equal(t, "muslin-saree-red", created.Slug)

	rec = s.do(http.MethodPut, "/api/v1/admin/products/"+created.ID, token, `{
		"name": "Muslin Saree", "color": "Red", "price": "4000", "discount": "500",
		"stock": 0, "availability": "PreOrder"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated ProductDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	require.NotNil(t, updated.Price)
	assert.True(t, updated.Price.Equal(decimal.NewFromInt(4000)))

	rec = s.do(http.MethodPost, "/api/v1/orders", "", orderBody(created.ID, 1))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var placed PlaceOrderResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&placed))
	assert.True(t, placed.Paid.Equal(decimal.NewFromInt(875)))

	rec = s.do(http.MethodGet, "/api/v1/admin/orders?limit=10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []OrderDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&orders))
	require.Len(t, orders, 1)
	assert.True(t, orders[0].PreOrder)
	assert.Equal(t, "Muslin Saree", orders[0].Items[0].ProductName)

	rec = s.do(http.MethodPatch, "/api/v1/admin/orders/"+placed.OrderID+"/status", token, UpdateStatusRequestDTO{Status: "Dispatched"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPatch, "/api/v1/admin/orders/"+placed.OrderID+"/status", token, UpdateStatusRequestDTO{Status: "Pending"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(service.KindInvalidStatusTransition), decodeError(t, rec).ErrorKind)

	rec = s.do(http.MethodGet, "/api/v1/admin/orders?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, "/api/v1/admin/products/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/admin/products/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaceOrder_IdempotencyKeyForwarded(t *testing.T) {
	fake := &recordingOrderService{res: &service.PlaceOrderResult{OrderID: "o-1"}}
	handler := NewOrderHandler(fake, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"items":[]}`))
	req.Header.Set("Idempotency-Key", "abc-123")
	rec := httptest.NewRecorder()
	handler.PlaceOrder(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "abc-123", fake.got.IdempotencyKey)
}

func TestRespondServiceError_UnknownIsInternal(t *testing.T) {
	fake := &recordingOrderService{err: errors.New("boom")}
	handler := NewOrderHandler(fake, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.PlaceOrder(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "InternalError", resp.ErrorKind)
	assert.NotContains(t, resp.Message, "boom")
}

type recordingOrderService struct {
	got *service.PlaceOrderRequest
	res *service.PlaceOrderResult
	err error
}

func (f *recordingOrderService) PlaceOrder(_ context.Context, req *service.PlaceOrderRequest) (*service.PlaceOrderResult, error) {
	f.got = req
	return f.res, f.err
}

func (f *recordingOrderService) LookupStatus(context.Context, string) (*domain.StatusView, error) {
	return nil, f.err
}
