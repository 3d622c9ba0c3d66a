package inventory

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

const defaultLowStockLimit = 100

// LowStockItem producto bajo el mínimo con la cantidad sugerida de reposición.
type LowStockItem struct {
	Product        *entity.Product
	Shortfall      int64
	SuggestedOrder int64
}

// LowStock lista los productos cuya existencia está por debajo del mínimo configurado.
// La sugerencia repone hasta el doble del mínimo.
func (uc *LedgerUseCase) LowStock(ctx context.Context, limit int) ([]LowStockItem, error) {
	if limit <= 0 {
		limit = defaultLowStockLimit
	}
	products, err := uc.repos.Products.ListBelowMinimum(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]LowStockItem, 0, len(products))
	for _, p := range products {
		out = append(out, LowStockItem{
			Product:        p,
			Shortfall:      p.MinimumQuantity - p.QuantityOnHand,
			SuggestedOrder: 2*p.MinimumQuantity - p.QuantityOnHand,
		})
	}
	return out, nil
}
