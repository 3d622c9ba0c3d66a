package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Resultados posibles de la autoridad fiscal.
const (
	IssueStatusAuthorized = "authorized"
	IssueStatusRejected   = "rejected"

	CancelStatusCancelled = "cancelled"
	CancelStatusRejected  = "rejected"
)

// Formatos de documento que entrega la autoridad.
const (
	DocumentFormatXML = "xml"
	DocumentFormatPDF = "pdf"
)

// FiscalGateway define el puerto de salida hacia la autoridad fiscal.
// Toda operación es idempotente sobre externalReference: reenviar una referencia
// ya autorizada devuelve el resultado previo.
// Un error retornado significa falla de red o timeout (resultado ambiguo); los rechazos
// de negocio llegan como resultado con Status rejected.
type FiscalGateway interface {
	Issue(ctx context.Context, externalReference string, payload FiscalPayload) (*IssueResult, error)
	Cancel(ctx context.Context, externalReference, justification string) (*CancelResult, error)
	FetchDocument(ctx context.Context, externalReference, format string) ([]byte, error)
}

// IssueResult respuesta de emisión.
type IssueResult struct {
	Status           string
	AuthorizationKey string
	DocumentNumber   string
	Message          string
}

// Authorized indica si la autoridad aprobó el documento.
func (r *IssueResult) Authorized() bool { return r != nil && r.Status == IssueStatusAuthorized }

// CancelResult respuesta de anulación.
type CancelResult struct {
	Status  string
	Message string
}

// FiscalPayload contenido del documento fiscal construido a partir del pedido.
type FiscalPayload struct {
	OrderNumber   string
	CustomerID    string
	PaymentMethod string
	IssueDate     time.Time
	Lines         []FiscalLine
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
}

// FiscalLine línea del documento fiscal.
type FiscalLine struct {
	Code        string
	Kind        string
	Description string
	Quantity    int64
	UnitValue   decimal.Decimal
	Subtotal    decimal.Decimal
}
