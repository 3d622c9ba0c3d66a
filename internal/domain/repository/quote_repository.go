package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// QuoteRepository define el puerto de persistencia para cotizaciones y sus líneas.
type QuoteRepository interface {
	Create(ctx context.Context, quote *entity.Quote) error
	GetByID(ctx context.Context, id string) (*entity.Quote, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Quote, error)
	UpdateStatus(ctx context.Context, id, status string, at time.Time) error
}
