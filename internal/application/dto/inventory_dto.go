package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// RegisterMovementRequest body para POST /api/inventory/movements.
// Quantity es el delta con signo: inflow > 0, outflow < 0, adjustment != 0.
type RegisterMovementRequest struct {
	ProductID         string           `json:"product_id"`
	Type              string           `json:"type"` // inflow | outflow | adjustment
	Quantity          int64            `json:"quantity"`
	UnitCost          *decimal.Decimal `json:"unit_cost,omitempty"`
	Reason            string           `json:"reason"`
	ReferenceDocument string           `json:"reference_document,omitempty"`
}

// RecountRequest body para POST /api/inventory/recounts.
type RecountRequest struct {
	ProductID         string `json:"product_id"`
	Counted           int64  `json:"counted"`
	Reason            string `json:"reason"`
	ReferenceDocument string `json:"reference_document,omitempty"`
}

// MovementResponse un eslabón de la cadena de movimientos.
type MovementResponse struct {
	ID                string           `json:"id"`
	ProductID         string           `json:"product_id"`
	Seq               int64            `json:"seq"`
	Type              string           `json:"type"`
	QuantityDelta     int64            `json:"quantity_delta"`
	QuantityBefore    int64            `json:"quantity_before"`
	QuantityAfter     int64            `json:"quantity_after"`
	UnitCost          *decimal.Decimal `json:"unit_cost,omitempty"`
	Reason            string           `json:"reason"`
	ReferenceDocument string           `json:"reference_document,omitempty"`
	ActorID           string           `json:"actor_id"`
	CreatedAt         time.Time        `json:"created_at"`
}

// NewMovementResponse mapea la entidad.
func NewMovementResponse(m *entity.StockMovement) MovementResponse {
	return MovementResponse{
		ID:                m.ID,
		ProductID:         m.ProductID,
		Seq:               m.Seq,
		Type:              m.Kind,
		QuantityDelta:     m.QuantityDelta,
		QuantityBefore:    m.QuantityBefore,
		QuantityAfter:     m.QuantityAfter,
		UnitCost:          m.UnitValue,
		Reason:            m.Reason,
		ReferenceDocument: m.ReferenceDocument,
		ActorID:           m.ActorID,
		CreatedAt:         m.CreatedAt,
	}
}

// MovementListResponse historial de un producto.
type MovementListResponse struct {
	ProductID string             `json:"product_id"`
	Items     []MovementResponse `json:"items"`
}

// VerifyResponse resultado de reproducir la cadena de un producto.
type VerifyResponse struct {
	ProductID         string `json:"product_id"`
	CachedQuantity    int64  `json:"cached_quantity"`
	ProjectedQuantity int64  `json:"projected_quantity"`
	Movements         int    `json:"movements"`
	Consistent        bool   `json:"consistent"`
	Reconciled        bool   `json:"reconciled"`
}

// NewVerifyResponse mapea el resultado del caso de uso.
func NewVerifyResponse(r *inventory.VerifyResult) VerifyResponse {
	return VerifyResponse{
		ProductID:         r.ProductID,
		CachedQuantity:    r.CachedQuantity,
		ProjectedQuantity: r.ProjectedQuantity,
		Movements:         r.Movements,
		Consistent:        r.Consistent,
		Reconciled:        r.Reconciled,
	}
}

// LowStockItemDTO producto bajo el mínimo con la sugerencia de reposición.
type LowStockItemDTO struct {
	ProductID       string `json:"product_id"`
	SKU             string `json:"sku"`
	ProductName     string `json:"product_name"`
	CurrentStock    int64  `json:"current_stock"`
	MinimumQuantity int64  `json:"minimum_quantity"`
	Shortfall       int64  `json:"shortfall"`
	SuggestedOrder  int64  `json:"suggested_order_qty"` // hasta el doble del mínimo
}

// NewLowStockItem mapea el resultado del caso de uso.
func NewLowStockItem(it inventory.LowStockItem) LowStockItemDTO {
	return LowStockItemDTO{
		ProductID:       it.Product.ID,
		SKU:             it.Product.SKU,
		ProductName:     it.Product.Name,
		CurrentStock:    it.Product.QuantityOnHand,
		MinimumQuantity: it.Product.MinimumQuantity,
		Shortfall:       it.Shortfall,
		SuggestedOrder:  it.SuggestedOrder,
	}
}
