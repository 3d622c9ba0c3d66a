package entity

import "time"

// Estados de la factura fiscal. issued y cancelled son terminales del intento;
// error es recuperable (el reintento reutiliza ExternalReference).
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusIssued    = "issued"
	InvoiceStatusCancelled = "cancelled"
	InvoiceStatusError     = "error"
)

var invoiceTransitions = map[string][]string{
	InvoiceStatusPending: {InvoiceStatusIssued, InvoiceStatusError},
	InvoiceStatusError:   {InvoiceStatusIssued, InvoiceStatusError},
	InvoiceStatusIssued:  {InvoiceStatusCancelled},
}

// Invoice representa el documento fiscal de un pedido.
type Invoice struct {
	ID                  string
	OrderID             string
	Status              string
	ExternalReference   string // clave de idempotencia ante la autoridad fiscal
	AuthorizationKey    string
	DocumentNumber      string
	LastError           string
	Attempts            int
	EmittingUntil       *time.Time // lease de emisión o anulación en curso
	CancelJustification string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	IssuedAt            *time.Time
	CancelledAt         *time.Time
}

// CanTransition indica si la factura puede pasar al estado to.
func (i *Invoice) CanTransition(to string) bool {
	for _, s := range invoiceTransitions[i.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// EmissionInFlight indica si hay una emisión o anulación con lease vigente.
func (i *Invoice) EmissionInFlight(now time.Time) bool {
	return i.EmittingUntil != nil && now.Before(*i.EmittingUntil)
}
