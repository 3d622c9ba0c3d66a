package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// GetInvoice obtiene una factura por ID.
func (c *Coordinator) GetInvoice(ctx context.Context, id string) (*entity.Invoice, error) {
	inv, err := c.repos.Invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: factura %s", domain.ErrNotFound, id)
	}
	return inv, nil
}

// GetInvoiceByOrder obtiene la factura de un pedido.
func (c *Coordinator) GetInvoiceByOrder(ctx context.Context, orderID string) (*entity.Invoice, error) {
	inv, err := c.repos.Invoices.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: factura del pedido %s", domain.ErrNotFound, orderID)
	}
	return inv, nil
}

// FetchDocument descarga el documento fiscal (xml o pdf) de una factura emitida o anulada.
// Si la autoridad no entrega el PDF, se genera una representación local.
//
// Retorna:
//   - domain.ErrNotFound         si la referencia no existe.
//   - domain.ErrInvalidInput     si el formato no es xml ni pdf.
//   - domain.ErrInvalidTransition si la factura nunca fue emitida.
func (c *Coordinator) FetchDocument(ctx context.Context, externalReference, format string) ([]byte, error) {
	if format != ports.DocumentFormatXML && format != ports.DocumentFormatPDF {
		return nil, fmt.Errorf("%w: formato %q (usar xml|pdf)", domain.ErrInvalidInput, format)
	}
	inv, err := c.repos.Invoices.GetByExternalReference(ctx, externalReference)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: factura %s", domain.ErrNotFound, externalReference)
	}
	if inv.Status != entity.InvoiceStatusIssued && inv.Status != entity.InvoiceStatusCancelled {
		return nil, fmt.Errorf("%w: factura %s en estado %s sin documento", domain.ErrInvalidTransition, externalReference, inv.Status)
	}

	fctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	doc, gwErr := c.gateway.FetchDocument(fctx, externalReference, format)
	if gwErr == nil && len(doc) > 0 {
		return doc, nil
	}
	if format != ports.DocumentFormatPDF || c.renderer == nil {
		if gwErr == nil {
			gwErr = fmt.Errorf("documento vacío")
		}
		return nil, fmt.Errorf("%w: documento %s no disponible: %v", domain.ErrConflict, externalReference, gwErr)
	}

	c.log.Warn().Err(gwErr).Str("external_reference", externalReference).Msg("PDF no disponible en la autoridad, se genera representación local")
	order, err := c.repos.Orders.GetByID(ctx, inv.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("%w: pedido %s", domain.ErrNotFound, inv.OrderID)
	}
	return c.renderer.RenderInvoicePDF(ctx, inv, order)
}
