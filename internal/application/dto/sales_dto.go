package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// LineItemDTO línea de un documento comercial (producto o servicio).
type LineItemDTO struct {
	ReferenceID   string          `json:"reference_id"`
	ReferenceKind string          `json:"reference_kind"` // product | service
	Description   string          `json:"description,omitempty"`
	Quantity      int64           `json:"quantity"`
	UnitValue     decimal.Decimal `json:"unit_value"`
}

// ToLineItems convierte las líneas del request a entidades.
func ToLineItems(in []LineItemDTO) []entity.LineItem {
	out := make([]entity.LineItem, len(in))
	for i, l := range in {
		out[i] = entity.LineItem{
			ReferenceID:   l.ReferenceID,
			ReferenceKind: l.ReferenceKind,
			Description:   l.Description,
			Quantity:      l.Quantity,
			UnitValue:     l.UnitValue,
		}
	}
	return out
}

func fromLineItems(items []entity.LineItem) []LineItemDTO {
	out := make([]LineItemDTO, len(items))
	for i, it := range items {
		out[i] = LineItemDTO{
			ReferenceID:   it.ReferenceID,
			ReferenceKind: it.ReferenceKind,
			Description:   it.Description,
			Quantity:      it.Quantity,
			UnitValue:     it.UnitValue,
		}
	}
	return out
}

// CreateQuoteRequest body para POST /api/quotes.
type CreateQuoteRequest struct {
	CustomerID string          `json:"customer_id"`
	LineItems  []LineItemDTO   `json:"line_items"`
	Discount   decimal.Decimal `json:"discount"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
}

// ApproveQuoteRequest body para POST /api/quotes/:id/approve.
type ApproveQuoteRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// QuoteResponse salida de una cotización.
type QuoteResponse struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	CustomerID string          `json:"customer_id"`
	Status     string          `json:"status"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	LineItems  []LineItemDTO   `json:"line_items"`
	Discount   decimal.Decimal `json:"discount"`
	TotalValue decimal.Decimal `json:"total_value"`
	CreatedBy  string          `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewQuoteResponse mapea la entidad.
func NewQuoteResponse(q *entity.Quote) *QuoteResponse {
	if q == nil {
		return nil
	}
	out := &QuoteResponse{
		ID:         q.ID,
		Number:     q.Number,
		CustomerID: q.CustomerID,
		Status:     q.Status,
		LineItems:  fromLineItems(q.LineItems),
		Discount:   q.Discount,
		TotalValue: q.TotalValue,
		CreatedBy:  q.CreatedBy,
		CreatedAt:  q.CreatedAt,
		UpdatedAt:  q.UpdatedAt,
	}
	if !q.ValidUntil.IsZero() {
		v := q.ValidUntil
		out.ValidUntil = &v
	}
	return out
}

// CreateOrderRequest body para POST /api/orders (pedido directo).
type CreateOrderRequest struct {
	CustomerID    string          `json:"customer_id"`
	LineItems     []LineItemDTO   `json:"line_items"`
	Discount      decimal.Decimal `json:"discount"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status,omitempty"` // pending | confirmed (por defecto)
}

// OrderResponse salida de un pedido.
type OrderResponse struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	CustomerID    string          `json:"customer_id"`
	QuoteID       *string         `json:"quote_id,omitempty"`
	Status        string          `json:"status"`
	LineItems     []LineItemDTO   `json:"line_items"`
	Discount      decimal.Decimal `json:"discount"`
	TotalValue    decimal.Decimal `json:"total_value"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	InvoiceID     *string         `json:"invoice_id,omitempty"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewOrderResponse mapea la entidad.
func NewOrderResponse(o *entity.Order) *OrderResponse {
	if o == nil {
		return nil
	}
	return &OrderResponse{
		ID:            o.ID,
		Number:        o.Number,
		CustomerID:    o.CustomerID,
		QuoteID:       o.QuoteID,
		Status:        o.Status,
		LineItems:     fromLineItems(o.LineItems),
		Discount:      o.Discount,
		TotalValue:    o.TotalValue,
		PaymentMethod: o.PaymentMethod,
		InvoiceID:     o.InvoiceID,
		CreatedBy:     o.CreatedBy,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
