package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/identity"
	"github.com/fjod/storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// AdminService is the back office surface used by the admin handlers.
type AdminService interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListOrders(ctx context.Context, limit int) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error)
}

type TokenIssuer interface {
	IssueToken(email, password string) (*identity.Token, error)
}

type AdminHandler struct {
	svc     AdminService
	tokens  TokenIssuer
	timeout time.Duration
}

func NewAdminHandler(svc AdminService, tokens TokenIssuer, timeout time.Duration) *AdminHandler {
	return &AdminHandler{svc: svc, tokens: tokens, timeout: timeout}
}

type TokenRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponseDTO struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ProductDTO is the wire shape of a product. A null price means TBA.
type ProductDTO struct {
	ID           string           `json:"id,omitempty"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Images       []string         `json:"images,omitempty"`
	MainCategory string           `json:"main_category,omitempty"`
	Category     string           `json:"category,omitempty"`
	Color        string           `json:"color,omitempty"`
	Slug         string           `json:"slug,omitempty"`
	Price        *decimal.Decimal `json:"price"`
	Discount     decimal.Decimal  `json:"discount"`
	Stock        int              `json:"stock"`
	Availability string           `json:"availability"`
	CreatedAt    *time.Time       `json:"created_at,omitempty"`
	UpdatedAt    *time.Time       `json:"updated_at,omitempty"`
}

type OrderItemDTO struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Color        string          `json:"color,omitempty"`
	Availability string          `json:"availability"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type OrderDTO struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id,omitempty"`
	Items         []OrderItemDTO  `json:"items"`
	CustomerName  string          `json:"customer_name"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	Total         decimal.Decimal `json:"total"`
	Advance       decimal.Decimal `json:"advance"`
	Paid          decimal.Decimal `json:"paid"`
	Due           decimal.Decimal `json:"due"`
	PreOrder      bool            `json:"pre_order"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

func (h *AdminHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.tokens.IssueToken(req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		respondError(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, TokenResponseDTO{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   int64(token.ExpiresIn.Seconds()),
	})
}

func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.svc.ListProducts(ctx)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := make([]ProductDTO, len(products))
	for i, p := range products {
		out[i] = toProductDTO(p)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.svc.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ProductDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.svc.CreateProduct(ctx, fromProductDTO(&req))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toProductDTO(p))
}

func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ProductDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	product := fromProductDTO(&req)
	product.ID = chi.URLParam(r, "id")

	p, err := h.svc.UpdateProduct(ctx, product)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.svc.DeleteProduct(ctx, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, string(service.KindValidation), "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	orders, err := h.svc.ListOrders(ctx, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	out := make([]OrderDTO, len(orders))
	for i, o := range orders {
		out[i] = toOrderDTO(o)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	o, err := h.svc.UpdateOrderStatus(ctx, chi.URLParam(r, "id"), domain.OrderStatus(req.Status))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTO(o))
}

func toProductDTO(p *domain.Product) ProductDTO {
	dto := ProductDTO{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Images:       p.Images,
		MainCategory: p.MainCategory,
		Category:     p.Category,
		Color:        p.Color,
		Slug:         p.Slug,
		Discount:     p.Discount,
		Stock:        p.Stock,
		Availability: string(p.Availability),
	}
	if p.Price.Valid {
		price := p.Price.Decimal
		dto.Price = &price
	}
	if !p.CreatedAt.IsZero() {
		created, updated := p.CreatedAt, p.UpdatedAt
		dto.CreatedAt, dto.UpdatedAt = &created, &updated
	}
	return dto
}

func fromProductDTO(dto *ProductDTO) *domain.Product {
	p := &domain.Product{
		Name:         dto.Name,
		Description:  dto.Description,
		Images:       dto.Images,
		MainCategory: dto.MainCategory,
		Category:     dto.Category,
		Color:        dto.Color,
		Discount:     dto.Discount,
		Stock:        dto.Stock,
		Availability: domain.Availability(dto.Availability),
	}
	if dto.Price != nil {
		p.Price = decimal.NewNullDecimal(*dto.Price)
	}
	return p
}

func toOrderDTO(o *domain.Order) OrderDTO {
	items := make([]OrderItemDTO, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemDTO{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			Color:        it.Color,
			Availability: string(it.Availability),
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			LineTotal:    it.LineTotal,
		}
	}
	return OrderDTO{
		ID:            o.ID,
		UserID:        o.UserID,
		Items:         items,
		CustomerName:  o.CustomerName,
		Phone:         o.Phone,
		Address:       o.Address,
		Subtotal:      o.Subtotal,
		DeliveryFee:   o.DeliveryFee,
		Total:         o.Total,
		Advance:       o.Advance,
		Paid:          o.Paid,
		Due:           o.Due,
		PreOrder:      o.PreOrder,
		PaymentMethod: string(o.PaymentMethod),
		TransactionID: o.TransactionID,
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
