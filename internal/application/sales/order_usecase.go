package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/ports"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// CreateOrderInput entrada para crear un pedido directo (sin cotización).
// Status admite pending o confirmed; vacío equivale a confirmed.
type CreateOrderInput struct {
	CustomerID    string
	LineItems     []entity.LineItem
	Discount      decimal.Decimal
	PaymentMethod string
	Status        string
	ActorID       string
}

// CreateOrder crea el pedido y consume el inventario de sus líneas de producto.
// Si alguna línea falla (p. ej. ErrInsufficientStock) no queda ni el pedido ni ningún movimiento.
func (uc *UseCase) CreateOrder(ctx context.Context, in CreateOrderInput) (*entity.Order, error) {
	if in.CustomerID == "" {
		return nil, fmt.Errorf("%w: customer_id requerido", domain.ErrInvalidInput)
	}
	if err := entity.ValidateLineItems(in.LineItems); err != nil {
		return nil, invalidInput(err)
	}
	total, err := entity.TotalOf(in.LineItems, in.Discount)
	if err != nil {
		return nil, invalidInput(err)
	}
	status := in.Status
	switch status {
	case "":
		status = entity.OrderStatusConfirmed
	case entity.OrderStatusPending, entity.OrderStatusConfirmed:
	default:
		return nil, fmt.Errorf("%w: estado inicial %q", domain.ErrInvalidInput, in.Status)
	}
	paymentMethod := in.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = DefaultPaymentMethod
	}

	now := time.Now().UTC()
	var (
		order *entity.Order
		movs  []*entity.StockMovement
	)
	err = uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		number, err := nextNumber(ctx, repos, entity.PrefixOrder, now)
		if err != nil {
			return err
		}
		order = &entity.Order{
			ID:            uuid.New().String(),
			Number:        number,
			CustomerID:    in.CustomerID,
			Status:        status,
			LineItems:     entity.CloneLineItems(in.LineItems),
			Discount:      in.Discount,
			TotalValue:    total,
			PaymentMethod: paymentMethod,
			CreatedBy:     in.ActorID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := repos.Orders.Create(ctx, order); err != nil {
			return err
		}
		movs, err = uc.consumeStock(ctx, repos, order, in.ActorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.ledger.AfterCommit(ctx, movs...)
	uc.recordOrderCreated(ctx, order)
	return order, nil
}

// GetOrder obtiene un pedido por ID.
func (uc *UseCase) GetOrder(ctx context.Context, id string) (*entity.Order, error) {
	o, err := uc.repos.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: pedido %s", domain.ErrNotFound, id)
	}
	return o, nil
}

// Confirm pasa un pedido pendiente a confirmado (facturable).
func (uc *UseCase) Confirm(ctx context.Context, orderID, actorID string) (*entity.Order, error) {
	order, err := uc.transition(ctx, orderID, entity.OrderStatusConfirmed, nil)
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("order_id", order.ID).Msg("pedido confirmado")
	uc.record(ctx, ports.AuditEvent{
		Type: ports.EventOrderConfirmed, AggregateType: ports.AggregateOrder, AggregateID: order.ID,
		ActorID: actorID, OccurredAt: order.UpdatedAt,
	})
	return order, nil
}

// Cancel anula un pedido pendiente o confirmado: genera entradas compensatorias por cada
// salida registrada con el número del pedido y lo deja en cancelled. Se rechaza mientras
// una emisión fiscal del pedido esté en curso.
func (uc *UseCase) Cancel(ctx context.Context, orderID, actorID string) (*entity.Order, error) {
	var movs []*entity.StockMovement
	order, err := uc.transition(ctx, orderID, entity.OrderStatusCancelled, func(ctx context.Context, repos repository.Repos, order *entity.Order, now time.Time) error {
		movs = nil
		inv, err := repos.Invoices.GetByOrderIDForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		if inv != nil && inv.EmissionInFlight(now) {
			return fmt.Errorf("%w: pedido %s", domain.ErrEmissionInProgress, order.Number)
		}
		movs, err = uc.restoreStock(ctx, repos, order, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.ledger.AfterCommit(ctx, movs...)
	uc.log.Info().Str("order_id", order.ID).Int("compensations", len(movs)).Msg("pedido cancelado")
	uc.record(ctx, ports.AuditEvent{
		Type: ports.EventOrderCancelled, AggregateType: ports.AggregateOrder, AggregateID: order.ID,
		ActorID: actorID, Data: map[string]any{"number": order.Number}, OccurredAt: order.UpdatedAt,
	})
	return order, nil
}

// restoreStock devuelve lo que el pedido consumió: salidas con su número, limitadas por producto
// a la cantidad de sus líneas. Ajustes o conteos manuales con la misma referencia no se revierten.
func (uc *UseCase) restoreStock(ctx context.Context, repos repository.Repos, order *entity.Order, actorID string) ([]*entity.StockMovement, error) {
	prior, err := repos.Movements.ListByReference(ctx, order.Number)
	if err != nil {
		return nil, err
	}
	ordered := entity.ProductQuantities(order.LineItems)
	consumed := make(map[string]int64)
	for _, m := range prior {
		if m.Kind != entity.MovementKindOutflow || m.Reason != orderOutflowReason {
			continue
		}
		if _, ok := ordered[m.ProductID]; ok {
			consumed[m.ProductID] -= m.QuantityDelta
		}
	}
	var movs []*entity.StockMovement
	for _, pid := range sortedKeys(consumed) {
		qty := min(consumed[pid], ordered[pid])
		if qty <= 0 {
			continue
		}
		mov, err := uc.ledger.AdjustInTx(ctx, repos, inventory.AdjustInput{
			ProductID:         pid,
			Delta:             qty,
			Kind:              entity.MovementKindInflow,
			Reason:            "anulación de pedido",
			ReferenceDocument: order.Number,
			ActorID:           actorID,
		})
		if err != nil {
			return nil, err
		}
		movs = append(movs, mov)
	}
	return movs, nil
}

type transitionHook func(ctx context.Context, repos repository.Repos, order *entity.Order, now time.Time) error

// transition bloquea el pedido, valida la transición, ejecuta hook y persiste el nuevo estado.
func (uc *UseCase) transition(ctx context.Context, orderID, to string, hook transitionHook) (*entity.Order, error) {
	var order *entity.Order
	now := time.Now().UTC()
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		var err error
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return fmt.Errorf("%w: pedido %s", domain.ErrNotFound, orderID)
		}
		if !order.CanTransition(to) {
			return fmt.Errorf("%w: pedido %s de %s a %s", domain.ErrInvalidTransition, order.Number, order.Status, to)
		}
		if hook != nil {
			if err := hook(ctx, repos, order, now); err != nil {
				return err
			}
		}
		order.Status = to
		order.UpdatedAt = now
		return repos.Orders.Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (uc *UseCase) recordOrderCreated(ctx context.Context, order *entity.Order) {
	uc.log.Info().
		Str("order_id", order.ID).
		Str("number", order.Number).
		Str("status", order.Status).
		Str("total", order.TotalValue.String()).
		Msg("pedido creado")
	data := map[string]any{"number": order.Number, "status": order.Status, "total": order.TotalValue.String()}
	if order.QuoteID != nil {
		data["quote_id"] = *order.QuoteID
	}
	uc.record(ctx, ports.AuditEvent{
		Type: ports.EventOrderCreated, AggregateType: ports.AggregateOrder, AggregateID: order.ID,
		ActorID: order.CreatedBy, Data: data, OccurredAt: order.CreatedAt,
	})
}
