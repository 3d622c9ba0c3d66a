package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var tracer = otel.Tracer("stockledger/billing")

const (
	defaultGatewayTimeout = 30 * time.Second
	defaultLeaseMargin    = 15 * time.Second
)

// Config parámetros del coordinador de emisión.
type Config struct {
	// Timeout tope de cada llamada a la autoridad fiscal.
	Timeout time.Duration
	// LeaseMargin tiempo extra del lease de emisión sobre Timeout; cubre la escritura del resultado.
	LeaseMargin time.Duration
}

// Coordinator conduce la máquina de estados de la factura fiscal de un pedido:
//
//	pending → issued | error,  error → issued | error,  issued → cancelled
//
// La llamada a la autoridad se hace fuera de toda transacción y sin bloqueos de inventario.
// ExternalReference es la clave de idempotencia: nunca cambia entre reintentos de la misma factura.
// Las fallas de la autoridad (rechazo, red, timeout) no se devuelven como error: quedan en la
// factura con estado error y LastError, lista para un nuevo RequestEmission.
type Coordinator struct {
	txRunner repository.TxRunner
	repos    repository.Repos
	gateway  ports.FiscalGateway
	renderer ports.DocumentRenderer
	audit    ports.AuditSink
	cfg      Config
	log      zerolog.Logger
	flight   singleflight.Group
}

// NewCoordinator construye el coordinador. renderer puede ser nil (sin respaldo PDF local).
func NewCoordinator(
	txRunner repository.TxRunner,
	repos repository.Repos,
	gateway ports.FiscalGateway,
	renderer ports.DocumentRenderer,
	audit ports.AuditSink,
	cfg Config,
	log zerolog.Logger,
) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGatewayTimeout
	}
	if cfg.LeaseMargin <= 0 {
		cfg.LeaseMargin = defaultLeaseMargin
	}
	if audit == nil {
		audit = ports.NopAuditSink{}
	}
	return &Coordinator{
		txRunner: txRunner,
		repos:    repos,
		gateway:  gateway,
		renderer: renderer,
		audit:    audit,
		cfg:      cfg,
		log:      log.With().Str("component", "fiscal").Logger(),
	}
}

// RequestEmission emite (o reintenta) la factura del pedido confirmado.
// Llamadas concurrentes para el mismo pedido en este proceso comparten un único intento;
// entre procesos, el lease EmittingUntil de la factura hace que el segundo reciba
// domain.ErrEmissionInProgress. Con el pedido ya facturado devuelve la factura existente
// sin llamar a la autoridad.
func (c *Coordinator) RequestEmission(ctx context.Context, orderID, actorID string) (*entity.Invoice, error) {
	v, err, _ := c.flight.Do(orderID, func() (any, error) {
		// el intento no se aborta si el primer solicitante se desconecta
		return c.emit(context.WithoutCancel(ctx), orderID, actorID)
	})
	if err != nil {
		return nil, err
	}
	inv := *v.(*entity.Invoice)
	return &inv, nil
}

// claim resultado de la primera transacción de la emisión.
type claim struct {
	invoice *entity.Invoice
	payload ports.FiscalPayload
	number  string
	call    bool
}

func (c *Coordinator) emit(ctx context.Context, orderID, actorID string) (*entity.Invoice, error) {
	cl, err := c.claim(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !cl.call {
		return cl.invoice, nil
	}

	res, gwErr := c.issue(ctx, cl)

	inv, lateForOrder, err := c.applyOutcome(ctx, orderID, res, gwErr)
	if err != nil {
		c.log.Error().Err(err).
			Str("order_id", orderID).
			Str("external_reference", cl.invoice.ExternalReference).
			Msg("no se pudo persistir el resultado de la emisión; el lease vence y el reintento reutiliza la referencia")
		return nil, err
	}
	c.reportOutcome(ctx, inv, cl.number, lateForOrder, actorID)
	return inv, nil
}

// claim valida el pedido, obtiene o crea la factura y toma el lease de emisión.
func (c *Coordinator) claim(ctx context.Context, orderID string) (*claim, error) {
	var cl *claim
	err := c.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		cl = nil
		now := time.Now().UTC()
		order, err := repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("%w: pedido %s", domain.ErrNotFound, orderID)
		}
		switch order.Status {
		case entity.OrderStatusInvoiced:
			inv, err := repos.Invoices.GetByOrderID(ctx, orderID)
			if err != nil {
				return err
			}
			if inv == nil {
				return fmt.Errorf("%w: pedido %s facturado sin factura", domain.ErrConflict, order.Number)
			}
			cl = &claim{invoice: inv}
			return nil
		case entity.OrderStatusConfirmed:
		default:
			return fmt.Errorf("%w: pedido %s en estado %s no es facturable", domain.ErrInvalidTransition, order.Number, order.Status)
		}

		inv, err := repos.Invoices.GetByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if inv == nil {
			inv = &entity.Invoice{
				ID:                uuid.New().String(),
				OrderID:           order.ID,
				Status:            entity.InvoiceStatusPending,
				ExternalReference: uuid.New().String(),
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := repos.Invoices.Create(ctx, inv); err != nil {
				return err
			}
			order.InvoiceID = &inv.ID
			order.UpdatedAt = now
			if err := repos.Orders.Update(ctx, order); err != nil {
				return err
			}
		}
		switch inv.Status {
		case entity.InvoiceStatusIssued:
			cl = &claim{invoice: inv}
			return nil
		case entity.InvoiceStatusCancelled:
			return fmt.Errorf("%w: la factura %s está anulada", domain.ErrInvalidTransition, inv.ExternalReference)
		}
		if inv.EmissionInFlight(now) {
			return fmt.Errorf("%w: pedido %s", domain.ErrEmissionInProgress, order.Number)
		}

		lease := now.Add(c.cfg.Timeout + c.cfg.LeaseMargin)
		inv.EmittingUntil = &lease
		inv.Attempts++
		inv.UpdatedAt = now
		if err := repos.Invoices.Update(ctx, inv); err != nil {
			return err
		}
		cl = &claim{invoice: inv, payload: buildPayload(order, now), number: order.Number, call: true}
		return nil
	})
	return cl, err
}

// issue llama a la autoridad con timeout acotado dentro de un span de trazas.
func (c *Coordinator) issue(ctx context.Context, cl *claim) (*ports.IssueResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "fiscal.issue",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("invoice.external_reference", cl.invoice.ExternalReference),
			attribute.String("order.number", cl.number),
			attribute.Int("invoice.attempt", cl.invoice.Attempts),
		))
	defer span.End()

	c.log.Info().
		Str("order_number", cl.number).
		Str("external_reference", cl.invoice.ExternalReference).
		Int("attempt", cl.invoice.Attempts).
		Msg("enviando documento a la autoridad fiscal")

	res, err := c.gateway.Issue(ctx, cl.invoice.ExternalReference, cl.payload)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway")
	case res == nil:
		err = errors.New("respuesta vacía de la autoridad fiscal")
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetAttributes(attribute.String("fiscal.status", res.Status))
	}
	return res, err
}

// applyOutcome persiste el resultado y libera el lease. lateForOrder indica una autorización
// que llegó con el pedido ya anulado.
func (c *Coordinator) applyOutcome(ctx context.Context, orderID string, res *ports.IssueResult, gwErr error) (*entity.Invoice, bool, error) {
	var (
		inv          *entity.Invoice
		lateForOrder bool
	)
	err := c.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		lateForOrder = false
		now := time.Now().UTC()
		order, err := repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("%w: pedido %s", domain.ErrNotFound, orderID)
		}
		inv, err = repos.Invoices.GetByOrderIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if inv == nil {
			return fmt.Errorf("%w: factura del pedido %s", domain.ErrNotFound, orderID)
		}
		inv.EmittingUntil = nil
		inv.UpdatedAt = now

		if gwErr == nil && res.Authorized() {
			if !inv.CanTransition(entity.InvoiceStatusIssued) {
				return fmt.Errorf("%w: factura %s en estado %s", domain.ErrInvalidTransition, inv.ExternalReference, inv.Status)
			}
			inv.Status = entity.InvoiceStatusIssued
			inv.AuthorizationKey = res.AuthorizationKey
			inv.DocumentNumber = res.DocumentNumber
			inv.LastError = ""
			inv.IssuedAt = &now
			switch order.Status {
			case entity.OrderStatusConfirmed:
				order.Status = entity.OrderStatusInvoiced
				order.InvoiceID = &inv.ID
				order.UpdatedAt = now
				if err := repos.Orders.Update(ctx, order); err != nil {
					return err
				}
			case entity.OrderStatusCancelled:
				lateForOrder = true
			}
		} else {
			if !inv.CanTransition(entity.InvoiceStatusError) {
				return fmt.Errorf("%w: factura %s en estado %s", domain.ErrInvalidTransition, inv.ExternalReference, inv.Status)
			}
			inv.Status = entity.InvoiceStatusError
			inv.LastError = failureMessage(res, gwErr)
		}
		return repos.Invoices.Update(ctx, inv)
	})
	return inv, lateForOrder, err
}

func failureMessage(res *ports.IssueResult, gwErr error) string {
	if gwErr != nil {
		if errors.Is(gwErr, context.DeadlineExceeded) {
			return "timeout esperando a la autoridad fiscal: " + gwErr.Error()
		}
		return "falla de comunicación con la autoridad fiscal: " + gwErr.Error()
	}
	if res.Message != "" {
		return "rechazada por la autoridad fiscal: " + res.Message
	}
	return "rechazada por la autoridad fiscal"
}

func (c *Coordinator) reportOutcome(ctx context.Context, inv *entity.Invoice, orderNumber string, lateForOrder bool, actorID string) {
	ev := ports.AuditEvent{
		AggregateType: ports.AggregateInvoice,
		AggregateID:   inv.ID,
		ActorID:       actorID,
		Data: map[string]any{
			"order_id":           inv.OrderID,
			"external_reference": inv.ExternalReference,
			"attempts":           inv.Attempts,
		},
		OccurredAt: inv.UpdatedAt,
	}
	if inv.Status == entity.InvoiceStatusIssued {
		ev.Type = ports.EventInvoiceIssued
		ev.Data["document_number"] = inv.DocumentNumber
		c.log.Info().
			Str("order_number", orderNumber).
			Str("external_reference", inv.ExternalReference).
			Str("document_number", inv.DocumentNumber).
			Msg("factura emitida")
		if lateForOrder {
			ev.Data["order_cancelled"] = true
			c.log.Warn().
				Str("order_number", orderNumber).
				Str("external_reference", inv.ExternalReference).
				Msg("autorización recibida para un pedido ya anulado; requiere anulación fiscal")
		}
	} else {
		ev.Type = ports.EventInvoiceErrored
		ev.Data["last_error"] = inv.LastError
		c.log.Warn().
			Str("order_number", orderNumber).
			Str("external_reference", inv.ExternalReference).
			Str("last_error", inv.LastError).
			Int("attempt", inv.Attempts).
			Msg("emisión fallida, factura reintentable")
	}
	c.record(ctx, ev)
}

func (c *Coordinator) record(ctx context.Context, ev ports.AuditEvent) {
	if err := c.audit.Record(ctx, ev); err != nil {
		c.log.Error().Err(err).Str("event", ev.AggregateType+"."+ev.Type).Msg("no se pudo registrar el evento de auditoría")
	}
}
