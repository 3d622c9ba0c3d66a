package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento de inventario.
const (
	MovementKindInflow     = "inflow"     // entrada
	MovementKindOutflow    = "outflow"    // salida
	MovementKindAdjustment = "adjustment" // ajuste manual
	MovementKindRecount    = "recount"    // conteo físico
)

// StockMovement representa un movimiento del libro de inventario. Inmutable una vez escrito.
// QuantityAfter = QuantityBefore + QuantityDelta y QuantityBefore del movimiento n+1
// es el QuantityAfter del movimiento n (cadena por producto, Seq desde 1 sin huecos).
type StockMovement struct {
	ID                string
	ProductID         string
	Seq               int64
	Kind              string
	QuantityDelta     int64
	QuantityBefore    int64
	QuantityAfter     int64
	UnitValue         *decimal.Decimal
	Reason            string
	ReferenceDocument string // número del pedido, compra, nota de ajuste, etc.
	ActorID           string // UserID
	CreatedAt         time.Time
}

// IsValidMovementKind valida el tipo de movimiento.
func IsValidMovementKind(kind string) bool {
	switch kind {
	case MovementKindInflow, MovementKindOutflow, MovementKindAdjustment, MovementKindRecount:
		return true
	}
	return false
}
