package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de la cotización. approved y rejected son terminales.
const (
	QuoteStatusPending  = "pending"
	QuoteStatusApproved = "approved"
	QuoteStatusRejected = "rejected"
)

// Quote representa una cotización (propuesta de venta aún no vinculante).
type Quote struct {
	ID         string
	Number     string
	CustomerID string
	Status     string
	ValidUntil time.Time
	LineItems  []LineItem
	Discount   decimal.Decimal
	TotalValue decimal.Decimal
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsTerminal indica si la cotización ya no admite transiciones.
func (q *Quote) IsTerminal() bool {
	return q.Status == QuoteStatusApproved || q.Status == QuoteStatusRejected
}

// IsExpired indica si la validez venció respecto a now. ValidUntil cero = sin vencimiento.
func (q *Quote) IsExpired(now time.Time) bool {
	return !q.ValidUntil.IsZero() && now.After(q.ValidUntil)
}
