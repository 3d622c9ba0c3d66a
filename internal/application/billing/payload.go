package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// buildPayload arma el contenido fiscal desde la foto de valores del pedido.
// Los totales son los del pedido (no se recalculan).
func buildPayload(order *entity.Order, issuedAt time.Time) ports.FiscalPayload {
	lines := make([]ports.FiscalLine, len(order.LineItems))
	subtotal := decimal.Zero
	for i, it := range order.LineItems {
		lines[i] = ports.FiscalLine{
			Code:        it.ReferenceID,
			Kind:        it.ReferenceKind,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitValue:   it.UnitValue,
			Subtotal:    it.Subtotal(),
		}
		subtotal = subtotal.Add(lines[i].Subtotal)
	}
	return ports.FiscalPayload{
		OrderNumber:   order.Number,
		CustomerID:    order.CustomerID,
		PaymentMethod: order.PaymentMethod,
		IssueDate:     issuedAt,
		Lines:         lines,
		Subtotal:      subtotal,
		Discount:      order.Discount,
		Total:         order.TotalValue,
	}
}
