package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// MovementFilter filtros opcionales para el historial.
type MovementFilter struct {
	From  *time.Time
	To    *time.Time
	Kind  string
	Limit int
}

// StockMovementRepository define el puerto del log de movimientos (solo inserción).
type StockMovementRepository interface {
	Append(ctx context.Context, movement *entity.StockMovement) error
	// LastByProduct devuelve el último eslabón de la cadena o nil si no hay movimientos.
	LastByProduct(ctx context.Context, productID string) (*entity.StockMovement, error)
	// ListByProduct devuelve los movimientos en orden de inserción (Seq ascendente).
	ListByProduct(ctx context.Context, productID string, filter MovementFilter) ([]*entity.StockMovement, error)
	ListByReference(ctx context.Context, referenceDocument string) ([]*entity.StockMovement, error)
}
