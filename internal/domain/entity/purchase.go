package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase registro de recepción de mercancía de un proveedor.
type Purchase struct {
	ID         string
	Number     string
	SupplierID string
	LineItems  []LineItem
	TotalValue decimal.Decimal
	CreatedBy  string
	CreatedAt  time.Time
}
