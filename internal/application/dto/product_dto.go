package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// RegisterProductRequest alta de un producto del catálogo. La existencia inicia en 0
// y solo cambia con movimientos.
type RegisterProductRequest struct {
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	MinimumQuantity int64           `json:"minimum_quantity"`
	AllowBackorder  bool            `json:"allow_backorder"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID              string          `json:"id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	Cost            decimal.Decimal `json:"cost"`
	QuantityOnHand  int64           `json:"quantity_on_hand"`
	MinimumQuantity int64           `json:"minimum_quantity"`
	AllowBackorder  bool            `json:"allow_backorder"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewProductResponse mapea la entidad.
func NewProductResponse(p *entity.Product) *ProductResponse {
	if p == nil {
		return nil
	}
	return &ProductResponse{
		ID:              p.ID,
		SKU:             p.SKU,
		Name:            p.Name,
		Price:           p.Price,
		Cost:            p.Cost,
		QuantityOnHand:  p.QuantityOnHand,
		MinimumQuantity: p.MinimumQuantity,
		AllowBackorder:  p.AllowBackorder,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
