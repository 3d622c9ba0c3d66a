package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// OrderRepository define el puerto de persistencia para pedidos y sus líneas.
type OrderRepository interface {
	// Create persiste el pedido. Devuelve domain.ErrDuplicate si ya existe un pedido para la misma cotización.
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Order, error)
	GetByQuoteID(ctx context.Context, quoteID string) (*entity.Order, error)
	// Update actualiza estado, factura vinculada y updated_at.
	Update(ctx context.Context, order *entity.Order) error
}
