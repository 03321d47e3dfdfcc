package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// OrderService is what the customer-facing handlers need.
type OrderService interface {
	PlaceOrder(ctx context.Context, req *service.PlaceOrderRequest) (*service.PlaceOrderResult, error)
	LookupStatus(ctx context.Context, transactionID string) (*domain.StatusView, error)
}

type OrderHandler struct {
	svc     OrderService
	timeout time.Duration
}

func NewOrderHandler(svc OrderService, timeout time.Duration) *OrderHandler {
	return &OrderHandler{svc: svc, timeout: timeout}
}

type OrderItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type PlaceOrderRequestDTO struct {
	Items          []OrderItemRequestDTO `json:"items"`
	CustomerName   string                `json:"customer_name"`
	Phone          string                `json:"phone"`
	Address        string                `json:"address"`
	PaymentMethod  string                `json:"payment_method"`
	TransactionID  string                `json:"transaction_id"`
	PolicyAccepted bool                  `json:"policy_accepted"`
}

type PlaceOrderResponseDTO struct {
	OrderID     string          `json:"order_id"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Due         decimal.Decimal `json:"due"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
}

func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PlaceOrderRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	items := make([]service.LineRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	res, err := h.svc.PlaceOrder(ctx, &service.PlaceOrderRequest{
		Items:          items,
		CustomerName:   req.CustomerName,
		Phone:          req.Phone,
		Address:        req.Address,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		TransactionID:  req.TransactionID,
		PolicyAccepted: req.PolicyAccepted,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, PlaceOrderResponseDTO{
		OrderID:     res.OrderID,
		Total:       res.Total,
		Paid:        res.Paid,
		Due:         res.Due,
		DeliveryFee: res.DeliveryFee,
	})
}

func (h *OrderHandler) LookupStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.svc.LookupStatus(ctx, chi.URLParam(r, "transaction_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}
