package dto

import (
	"time"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// CancelInvoiceRequest body para POST /api/invoices/cancel.
type CancelInvoiceRequest struct {
	ExternalReference string `json:"external_reference"`
	Justification     string `json:"justification"`
}

// InvoiceResponse estado fiscal de la factura de un pedido.
type InvoiceResponse struct {
	ID                  string     `json:"id"`
	OrderID             string     `json:"order_id"`
	Status              string     `json:"status"`
	ExternalReference   string     `json:"external_reference"`
	AuthorizationKey    string     `json:"authorization_key,omitempty"`
	DocumentNumber      string     `json:"document_number,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	Attempts            int        `json:"attempts"`
	CancelJustification string     `json:"cancel_justification,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	IssuedAt            *time.Time `json:"issued_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
}

// NewInvoiceResponse mapea la entidad. EmittingUntil no se expone.
func NewInvoiceResponse(i *entity.Invoice) *InvoiceResponse {
	if i == nil {
		return nil
	}
	return &InvoiceResponse{
		ID:                  i.ID,
		OrderID:             i.OrderID,
		Status:              i.Status,
		ExternalReference:   i.ExternalReference,
		AuthorizationKey:    i.AuthorizationKey,
		DocumentNumber:      i.DocumentNumber,
		LastError:           i.LastError,
		Attempts:            i.Attempts,
		CancelJustification: i.CancelJustification,
		CreatedAt:           i.CreatedAt,
		UpdatedAt:           i.UpdatedAt,
		IssuedAt:            i.IssuedAt,
		CancelledAt:         i.CancelledAt,
	}
}
