package sales

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// StockLedger interfaz para integrar ventas con el libro de inventario.
// AdjustInTx usa los repositorios del caller (misma transacción); si retorna error
// (ej: ErrInsufficientStock) la transacción completa se descarta.
type StockLedger interface {
	AdjustInTx(ctx context.Context, repos repository.Repos, in inventory.AdjustInput) (*entity.StockMovement, error)
	AfterCommit(ctx context.Context, movements ...*entity.StockMovement)
}

var _ StockLedger = (*inventory.LedgerUseCase)(nil)
