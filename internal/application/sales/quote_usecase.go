package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// CreateQuoteInput entrada para crear una cotización.
type CreateQuoteInput struct {
	CustomerID string
	LineItems  []entity.LineItem
	Discount   decimal.Decimal
	ValidUntil time.Time
	ActorID    string
}

// ApproveInput datos del pedido que nace de la aprobación.
type ApproveInput struct {
	PaymentMethod string
	ActorID       string
}

// CreateQuote registra una cotización pendiente con su consecutivo COT-AAAA-NNNNN.
func (uc *UseCase) CreateQuote(ctx context.Context, in CreateQuoteInput) (*entity.Quote, error) {
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
	now := time.Now().UTC()
	if !in.ValidUntil.IsZero() && !in.ValidUntil.After(now) {
		return nil, fmt.Errorf("%w: valid_until debe ser futura", domain.ErrInvalidInput)
	}

	quote := &entity.Quote{
		ID:         uuid.New().String(),
		CustomerID: in.CustomerID,
		Status:     entity.QuoteStatusPending,
		ValidUntil: in.ValidUntil,
		LineItems:  entity.CloneLineItems(in.LineItems),
		Discount:   in.Discount,
		TotalValue: total,
		CreatedBy:  in.ActorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		if err := requireProducts(ctx, repos, quote.LineItems); err != nil {
			return err
		}
		number, err := nextNumber(ctx, repos, entity.PrefixQuote, now)
		if err != nil {
			return err
		}
		quote.Number = number
		return repos.Quotes.Create(ctx, quote)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("quote_id", quote.ID).Str("number", quote.Number).Str("total", quote.TotalValue.String()).Msg("cotización creada")
	uc.record(ctx, ports.AuditEvent{
		Type: ports.EventQuoteCreated, AggregateType: ports.AggregateQuote, AggregateID: quote.ID,
		ActorID: in.ActorID, Data: map[string]any{"number": quote.Number}, OccurredAt: now,
	})
	return quote, nil
}

// GetQuote obtiene una cotización por ID.
func (uc *UseCase) GetQuote(ctx context.Context, id string) (*entity.Quote, error) {
	q, err := uc.repos.Quotes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("%w: cotización %s", domain.ErrNotFound, id)
	}
	return q, nil
}

// Approve convierte la cotización pendiente en exactamente un pedido confirmado, copiando
// líneas, descuento y total sin recalcular, y consume el inventario en la misma transacción.
// Aprobar una cotización ya aprobada devuelve el pedido existente.
func (uc *UseCase) Approve(ctx context.Context, quoteID string, in ApproveInput) (*entity.Order, error) {
	var (
		order   *entity.Order
		movs    []*entity.StockMovement
		created bool
	)
	now := time.Now().UTC()
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		order, movs, created = nil, nil, false

		quote, err := repos.Quotes.GetForUpdate(ctx, quoteID)
		if err != nil {
			return err
		}
		if quote == nil {
			return fmt.Errorf("%w: cotización %s", domain.ErrNotFound, quoteID)
		}
		switch quote.Status {
		case entity.QuoteStatusApproved:
			order, err = repos.Orders.GetByQuoteID(ctx, quoteID)
			if err != nil {
				return err
			}
			if order == nil {
				return fmt.Errorf("%w: cotización %s aprobada sin pedido", domain.ErrConflict, quote.Number)
			}
			return nil
		case entity.QuoteStatusRejected:
			return fmt.Errorf("%w: cotización %s rechazada", domain.ErrInvalidTransition, quote.Number)
		}
		if quote.IsExpired(now) {
			return fmt.Errorf("%w: cotización %s venció el %s", domain.ErrQuoteExpired, quote.Number, quote.ValidUntil.Format(time.DateOnly))
		}

		paymentMethod := in.PaymentMethod
		if paymentMethod == "" {
			paymentMethod = DefaultPaymentMethod
		}
		number, err := nextNumber(ctx, repos, entity.PrefixOrder, now)
		if err != nil {
			return err
		}
		qid := quote.ID
		order = &entity.Order{
			ID:            uuid.New().String(),
			Number:        number,
			CustomerID:    quote.CustomerID,
			QuoteID:       &qid,
			Status:        entity.OrderStatusConfirmed,
			LineItems:     entity.CloneLineItems(quote.LineItems),
			Discount:      quote.Discount,
			TotalValue:    quote.TotalValue,
			PaymentMethod: paymentMethod,
			CreatedBy:     in.ActorID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := repos.Orders.Create(ctx, order); err != nil {
			return err
		}
		if movs, err = uc.consumeStock(ctx, repos, order, in.ActorID); err != nil {
			return err
		}
		created = true
		return repos.Quotes.UpdateStatus(ctx, quote.ID, entity.QuoteStatusApproved, now)
	})
	if errors.Is(err, domain.ErrDuplicate) {
		// otra aprobación concurrente ganó la restricción única orders.quote_id
		existing, gerr := uc.repos.Orders.GetByQuoteID(ctx, quoteID)
		if gerr == nil && existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if !created {
		return order, nil
	}

	uc.ledger.AfterCommit(ctx, movs...)
	uc.log.Info().Str("quote_id", quoteID).Str("order_id", order.ID).Str("order_number", order.Number).Msg("cotización aprobada")
	uc.record(ctx, ports.AuditEvent{
		Type: ports.EventQuoteApproved, AggregateType: ports.AggregateQuote, AggregateID: quoteID,
		ActorID: in.ActorID, Data: map[string]any{"order_id": order.ID}, OccurredAt: now,
	})
	uc.recordOrderCreated(ctx, order)
	return order, nil
}

// Reject pasa la cotización pendiente a rechazada.
func (uc *UseCase) Reject(ctx context.Context, quoteID, actorID string) (*entity.Quote, error) {
	var quote *entity.Quote
	now := time.Now().UTC()
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		var err error
		quote, err = repos.Quotes.GetForUpdate(ctx, quoteID)
		if err != nil {
			return err
		}
		if quote == nil {
			return fmt.Errorf("%w: cotización %s", domain.ErrNotFound, quoteID)
		}
		if quote.Status != entity.QuoteStatusPending {
			return fmt.Errorf("%w: cotización %s en estado %s", domain.ErrInvalidTransition, quote.Number, quote.Status)
		}
		quote.Status = entity.QuoteStatusRejected
		quote.UpdatedAt = now
		return repos.Quotes.UpdateStatus(ctx, quote.ID, quote.Status, now)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Str("quote_id", quoteID).Msg("cotización rechazada")
	uc.record(ctx, ports.AuditEvent{
		Type: ports.EventQuoteRejected, AggregateType: ports.AggregateQuote, AggregateID: quoteID,
		ActorID: actorID, OccurredAt: now,
	})
	return quote, nil
}
