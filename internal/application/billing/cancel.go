package billing

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// MinJustificationLength mínimo de caracteres que exige la autoridad para anular.
const MinJustificationLength = 15

// CancelInput entrada de la anulación fiscal.
type CancelInput struct {
	ExternalReference string
	Justification     string
	ActorID           string
}

// NormalizeJustification normaliza (NFC) y recorta la justificación; la longitud se mide en caracteres.
func NormalizeJustification(s string) (string, error) {
	s = strings.TrimSpace(norm.NFC.String(s))
	if n := utf8.RuneCountInString(s); n < MinJustificationLength {
		return "", fmt.Errorf("%w: %d caracteres, mínimo %d", domain.ErrJustificationTooShort, n, MinJustificationLength)
	}
	return s, nil
}

// Cancel anula ante la autoridad una factura emitida. No revierte movimientos de inventario
// ni cambia el estado del pedido. Si la autoridad rechaza o no responde, la factura sigue
// emitida y se devuelve un error envuelto en domain.ErrConflict.
//
// La autoridad se llama fuera de toda transacción, entre la toma del lease y el registro
// del resultado; un reintento del TxRunner no reenvía la anulación.
func (c *Coordinator) Cancel(ctx context.Context, in CancelInput) (*entity.Invoice, error) {
	justification, err := NormalizeJustification(in.Justification)
	if err != nil {
		return nil, err
	}
	if in.ExternalReference == "" {
		return nil, fmt.Errorf("%w: external_reference requerido", domain.ErrInvalidInput)
	}

	if err := c.claimCancel(ctx, in.ExternalReference); err != nil {
		c.log.Warn().Err(err).Str("external_reference", in.ExternalReference).Msg("anulación de factura no aplicada")
		return nil, err
	}
	res, gwErr := c.cancelAtGateway(ctx, in.ExternalReference, justification)
	inv, err := c.applyCancel(ctx, in.ExternalReference, justification, res, gwErr)
	if err != nil {
		c.log.Error().Err(err).Str("external_reference", in.ExternalReference).Msg("no se pudo registrar el resultado de la anulación")
		return nil, err
	}
	switch {
	case gwErr != nil:
		err = fmt.Errorf("%w: anulación no confirmada: %v", domain.ErrConflict, gwErr)
	case res.Status != ports.CancelStatusCancelled:
		err = fmt.Errorf("%w: anulación rechazada por la autoridad fiscal: %s", domain.ErrConflict, res.Message)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("external_reference", in.ExternalReference).Msg("anulación de factura no aplicada")
		return nil, err
	}

	c.log.Info().Str("external_reference", inv.ExternalReference).Str("invoice_id", inv.ID).Msg("factura anulada")
	c.record(ctx, ports.AuditEvent{
		Type: ports.EventInvoiceCancelled, AggregateType: ports.AggregateInvoice, AggregateID: inv.ID,
		ActorID: in.ActorID, Data: map[string]any{"external_reference": inv.ExternalReference, "justification": justification},
		OccurredAt: inv.UpdatedAt,
	})
	return inv, nil
}

// claimCancel valida que la factura esté emitida y toma el lease de operación fiscal.
// Dos anulaciones simultáneas de la misma factura no llegan juntas a la autoridad.
func (c *Coordinator) claimCancel(ctx context.Context, ref string) error {
	return c.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		now := time.Now().UTC()
		inv, err := repos.Invoices.GetByExternalReferenceForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if inv == nil {
			return fmt.Errorf("%w: factura %s", domain.ErrNotFound, ref)
		}
		if !inv.CanTransition(entity.InvoiceStatusCancelled) {
			return fmt.Errorf("%w: factura %s en estado %s", domain.ErrInvalidTransition, inv.ExternalReference, inv.Status)
		}
		if inv.EmissionInFlight(now) {
			return fmt.Errorf("%w: anulación de la factura %s en curso", domain.ErrConflict, inv.ExternalReference)
		}
		lease := now.Add(c.cfg.Timeout + c.cfg.LeaseMargin)
		inv.EmittingUntil = &lease
		inv.UpdatedAt = now
		return repos.Invoices.Update(ctx, inv)
	})
}

// applyCancel libera el lease y, si la autoridad confirmó, deja la factura anulada.
func (c *Coordinator) applyCancel(ctx context.Context, ref, justification string, res *ports.CancelResult, gwErr error) (*entity.Invoice, error) {
	var inv *entity.Invoice
	err := c.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		now := time.Now().UTC()
		var err error
		inv, err = repos.Invoices.GetByExternalReferenceForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if inv == nil {
			return fmt.Errorf("%w: factura %s", domain.ErrNotFound, ref)
		}
		inv.EmittingUntil = nil
		inv.UpdatedAt = now
		if gwErr == nil && res.Status == ports.CancelStatusCancelled {
			if !inv.CanTransition(entity.InvoiceStatusCancelled) {
				return fmt.Errorf("%w: factura %s en estado %s", domain.ErrInvalidTransition, inv.ExternalReference, inv.Status)
			}
			inv.Status = entity.InvoiceStatusCancelled
			inv.CancelJustification = justification
			inv.CancelledAt = &now
		}
		return repos.Invoices.Update(ctx, inv)
	})
	return inv, err
}

// cancelAtGateway llama a la autoridad con timeout acotado dentro de un span de trazas.
func (c *Coordinator) cancelAtGateway(ctx context.Context, ref, justification string) (*ports.CancelResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "fiscal.cancel",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("invoice.external_reference", ref)))
	defer span.End()

	res, err := c.gateway.Cancel(ctx, ref, justification)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway")
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("respuesta vacía de la autoridad fiscal")
	}
	span.SetAttributes(attribute.String("fiscal.status", res.Status))
	return res, nil
}
