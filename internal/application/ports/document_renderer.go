package ports

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// DocumentRenderer genera una representación local de la factura cuando la autoridad
// no entrega el PDF.
type DocumentRenderer interface {
	RenderInvoicePDF(ctx context.Context, invoice *entity.Invoice, order *entity.Order) ([]byte, error)
}
