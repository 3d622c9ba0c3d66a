package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// InvoiceRepository define el puerto de persistencia para facturas fiscales.
type InvoiceRepository interface {
	// Create devuelve domain.ErrDuplicate si el pedido ya tiene factura.
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	GetByOrderID(ctx context.Context, orderID string) (*entity.Invoice, error)
	GetByOrderIDForUpdate(ctx context.Context, orderID string) (*entity.Invoice, error)
	GetByExternalReference(ctx context.Context, ref string) (*entity.Invoice, error)
	GetByExternalReferenceForUpdate(ctx context.Context, ref string) (*entity.Invoice, error)
	// Update actualiza estado, datos de autorización, error, lease y marcas de tiempo.
	Update(ctx context.Context, invoice *entity.Invoice) error
}
