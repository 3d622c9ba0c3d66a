package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Tipos de referencia de una línea comercial.
const (
	ReferenceKindProduct = "product"
	ReferenceKindService = "service"
)

// LineItem línea de cotización, pedido o compra. Es una foto del valor al momento
// del documento, no una referencia viva al catálogo.
type LineItem struct {
	ReferenceID   string
	ReferenceKind string
	Description   string
	Quantity      int64
	UnitValue     decimal.Decimal
}

// IsProduct indica si la línea mueve inventario.
func (l LineItem) IsProduct() bool { return l.ReferenceKind == ReferenceKindProduct }

// Subtotal cantidad * valor unitario.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitValue.Mul(decimal.NewFromInt(l.Quantity))
}

// ValidateLineItems valida la lista de líneas en la frontera del sistema.
func ValidateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return fmt.Errorf("se requiere al menos una línea")
	}
	for i, it := range items {
		if it.ReferenceID == "" {
			return fmt.Errorf("línea %d: reference_id requerido", i+1)
		}
		if it.ReferenceKind != ReferenceKindProduct && it.ReferenceKind != ReferenceKindService {
			return fmt.Errorf("línea %d: reference_kind %q desconocido", i+1, it.ReferenceKind)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("línea %d: la cantidad debe ser positiva", i+1)
		}
		if it.UnitValue.IsNegative() {
			return fmt.Errorf("línea %d: valor unitario negativo", i+1)
		}
	}
	return nil
}

// TotalOf calcula Σ cantidad·valor − descuento. El descuento debe estar en [0, Σ].
func TotalOf(items []LineItem, discount decimal.Decimal) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	if discount.IsNegative() || discount.GreaterThan(sum) {
		return decimal.Zero, fmt.Errorf("descuento %s fuera de rango [0, %s]", discount, sum)
	}
	return sum.Sub(discount), nil
}

// ProductQuantities agrupa las cantidades por producto (ignora servicios).
func ProductQuantities(items []LineItem) map[string]int64 {
	out := make(map[string]int64)
	for _, it := range items {
		if it.IsProduct() {
			out[it.ReferenceID] += it.Quantity
		}
	}
	return out
}

// CloneLineItems copia la lista para que el documento destino no comparta el slice.
func CloneLineItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
