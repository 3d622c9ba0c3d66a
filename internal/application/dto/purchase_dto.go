package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// ReceivePurchaseRequest body para POST /api/purchases.
type ReceivePurchaseRequest struct {
	SupplierID string        `json:"supplier_id"`
	LineItems  []LineItemDTO `json:"line_items"`
}

// PurchaseResponse salida de una compra recibida.
type PurchaseResponse struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	SupplierID string          `json:"supplier_id"`
	LineItems  []LineItemDTO   `json:"line_items"`
	TotalValue decimal.Decimal `json:"total_value"`
	CreatedBy  string          `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewPurchaseResponse mapea la entidad.
func NewPurchaseResponse(p *entity.Purchase) *PurchaseResponse {
	if p == nil {
		return nil
	}
	return &PurchaseResponse{
		ID:         p.ID,
		Number:     p.Number,
		SupplierID: p.SupplierID,
		LineItems:  fromLineItems(p.LineItems),
		TotalValue: p.TotalValue,
		CreatedBy:  p.CreatedBy,
		CreatedAt:  p.CreatedAt,
	}
}
