package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ProductRepository define el puerto hacia el catálogo de productos (DIP).
// La cantidad solo se escribe vía UpdateStock, desde el libro de inventario.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	GetBySKU(ctx context.Context, sku string) (*entity.Product, error)
	// GetForUpdate obtiene el producto y serializa el acceso a su fila hasta el fin de la transacción
	// (SELECT ... FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.Product, error)
	// UpdateStock escribe el agregado con compare-and-swap sobre la cantidad esperada.
	// Devuelve domain.ErrConcurrencyConflict si la fila cambió.
	UpdateStock(ctx context.Context, id string, expected, quantity int64, cost decimal.Decimal) error
	// ListBelowMinimum lista productos con existencias por debajo del mínimo.
	ListBelowMinimum(ctx context.Context, limit int) ([]*entity.Product, error)
}
