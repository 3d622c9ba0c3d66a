package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del catálogo.
// QuantityOnHand es un agregado cacheado: la fuente de verdad es la cadena de StockMovement
// y solo el libro de inventario (application/inventory) lo modifica.
type Product struct {
	ID              string
	SKU             string // código único
	Name            string
	Price           decimal.Decimal // precio de venta
	Cost            decimal.Decimal // costo promedio ponderado (inicia en 0)
	QuantityOnHand  int64
	MinimumQuantity int64 // umbral de reposición
	AllowBackorder  bool  // permite vender sin existencias (stock negativo)
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BelowMinimum indica si la cantidad dada queda por debajo del mínimo configurado.
func (p *Product) BelowMinimum(qty int64) bool {
	return p.MinimumQuantity > 0 && qty < p.MinimumQuantity
}
