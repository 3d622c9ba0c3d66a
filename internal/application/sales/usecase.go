package sales

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/ports"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// DefaultPaymentMethod forma de pago cuando el documento no la indica.
const DefaultPaymentMethod = "cash"

// UseCase ciclo de vida de cotizaciones y pedidos. El consumo de inventario de un pedido
// se confirma en la misma transacción que el pedido.
type UseCase struct {
	txRunner repository.TxRunner
	repos    repository.Repos
	ledger   StockLedger
	audit    ports.AuditSink
	log      zerolog.Logger
}

// NewUseCase construye el caso de uso de ventas.
func NewUseCase(
	txRunner repository.TxRunner,
	repos repository.Repos,
	ledger StockLedger,
	audit ports.AuditSink,
	log zerolog.Logger,
) *UseCase {
	if audit == nil {
		audit = ports.NopAuditSink{}
	}
	return &UseCase{
		txRunner: txRunner,
		repos:    repos,
		ledger:   ledger,
		audit:    audit,
		log:      log.With().Str("component", "sales").Logger(),
	}
}

// nextNumber reserva el consecutivo dentro de la transacción del documento.
func nextNumber(ctx context.Context, repos repository.Repos, prefix string, now time.Time) (string, error) {
	seq, err := repos.Numbers.Next(ctx, prefix, now.Year())
	if err != nil {
		return "", fmt.Errorf("consecutivo %s: %w", prefix, err)
	}
	return entity.FormatDocumentNumber(prefix, now.Year(), seq), nil
}

const orderOutflowReason = "pedido"

// consumeStock descuenta las líneas de producto del pedido en orden ascendente de producto,
// con lo que dos pedidos que comparten productos toman los bloqueos en el mismo orden.
func (uc *UseCase) consumeStock(ctx context.Context, repos repository.Repos, order *entity.Order, actorID string) ([]*entity.StockMovement, error) {
	qty := entity.ProductQuantities(order.LineItems)
	var movs []*entity.StockMovement
	for _, pid := range sortedKeys(qty) {
		mov, err := uc.ledger.AdjustInTx(ctx, repos, inventory.AdjustInput{
			ProductID:         pid,
			Delta:             -qty[pid],
			Kind:              entity.MovementKindOutflow,
			Reason:            orderOutflowReason,
			ReferenceDocument: order.Number,
			ActorID:           actorID,
		})
		if err != nil {
			return nil, fmt.Errorf("pedido %s: %w", order.Number, err)
		}
		movs = append(movs, mov)
	}
	return movs, nil
}

// requireProducts falla con ErrNotFound si alguna línea de producto no está en el catálogo.
func requireProducts(ctx context.Context, repos repository.Repos, items []entity.LineItem) error {
	for _, pid := range sortedKeys(entity.ProductQuantities(items)) {
		p, err := repos.Products.GetByID(ctx, pid)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: producto %s", domain.ErrNotFound, pid)
		}
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (uc *UseCase) record(ctx context.Context, ev ports.AuditEvent) {
	if err := uc.audit.Record(ctx, ev); err != nil {
		uc.log.Error().Err(err).Str("event", ev.AggregateType+"."+ev.Type).Msg("no se pudo registrar el evento de auditoría")
	}
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}
