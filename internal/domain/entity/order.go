package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del pedido (venta).
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusInvoiced  = "invoiced"
	OrderStatusCancelled = "cancelled"
)

var orderTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusInvoiced, OrderStatusCancelled},
}

// Order representa un pedido vinculante, creado directamente o al aprobar una cotización.
type Order struct {
	ID            string
	Number        string
	CustomerID    string
	QuoteID       *string
	Status        string
	LineItems     []LineItem
	Discount      decimal.Decimal
	TotalValue    decimal.Decimal
	PaymentMethod string
	InvoiceID     *string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CanTransition indica si el pedido puede pasar al estado to.
func (o *Order) CanTransition(to string) bool {
	for _, s := range orderTransitions[o.Status] {
		if s == to {
			return true
		}
	}
	return false
}
