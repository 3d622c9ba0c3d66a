package inventory

import (
	"fmt"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// Project reconstruye la cantidad disponible reproduciendo la cadena de movimientos
// de un producto en orden de inserción. Devuelve domain.ErrLedgerCorrupted si algún
// eslabón no encadena.
func Project(movements []*entity.StockMovement) (int64, error) {
	var qty int64
	for i, m := range movements {
		if m.Seq != int64(i+1) {
			return 0, fmt.Errorf("%w: seq %d en la posición %d", domain.ErrLedgerCorrupted, m.Seq, i+1)
		}
		if m.QuantityBefore != qty {
			return 0, fmt.Errorf("%w: movimiento %s inicia en %d, se esperaba %d",
				domain.ErrLedgerCorrupted, m.ID, m.QuantityBefore, qty)
		}
		if m.QuantityAfter != m.QuantityBefore+m.QuantityDelta {
			return 0, fmt.Errorf("%w: movimiento %s no cuadra (%d + %d != %d)",
				domain.ErrLedgerCorrupted, m.ID, m.QuantityBefore, m.QuantityDelta, m.QuantityAfter)
		}
		qty = m.QuantityAfter
	}
	return qty, nil
}
