package ports

import (
	"context"
	"time"
)

// Tipos de evento reportados al sink de auditoría.
const (
	EventMovementAppended = "movement_appended"
	EventBelowMinimum     = "below_minimum"
	EventQuoteCreated     = "created"
	EventQuoteApproved    = "approved"
	EventQuoteRejected    = "rejected"
	EventOrderCreated     = "created"
	EventOrderConfirmed   = "confirmed"
	EventOrderCancelled   = "cancelled"
	EventPurchaseReceived = "received"
	EventInvoiceIssued    = "issued"
	EventInvoiceErrored   = "error"
	EventInvoiceCancelled = "cancelled"
)

// Agregados que emiten eventos.
const (
	AggregateStock    = "stock"
	AggregateQuote    = "quote"
	AggregateOrder    = "order"
	AggregatePurchase = "purchase"
	AggregateInvoice  = "invoice"
)

// AuditEvent transición de estado reportada después del commit.
type AuditEvent struct {
	Type          string         `json:"type"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	ActorID       string         `json:"actor_id,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// AuditSink colaborador de solo escritura. Sus fallas no afectan la operación de negocio:
// los casos de uso solo las registran en el log.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// NopAuditSink descarta los eventos.
type NopAuditSink struct{}

// Record implementa AuditSink.
func (NopAuditSink) Record(context.Context, AuditEvent) error { return nil }
