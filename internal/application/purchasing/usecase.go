package purchasing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/ports"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// StockLedger puerto hacia el libro de inventario (misma transacción del caller).
type StockLedger interface {
	AdjustInTx(ctx context.Context, repos repository.Repos, in inventory.AdjustInput) (*entity.StockMovement, error)
	AfterCommit(ctx context.Context, movements ...*entity.StockMovement)
}

// UseCase recepción de compras: cada línea de producto entra al inventario al valor de compra.
type UseCase struct {
	txRunner repository.TxRunner
	repos    repository.Repos
	ledger   StockLedger
	audit    ports.AuditSink
	log      zerolog.Logger
}

// NewUseCase construye el caso de uso de compras.
func NewUseCase(txRunner repository.TxRunner, repos repository.Repos, ledger StockLedger, audit ports.AuditSink, log zerolog.Logger) *UseCase {
	if audit == nil {
		audit = ports.NopAuditSink{}
	}
	return &UseCase{
		txRunner: txRunner,
		repos:    repos,
		ledger:   ledger,
		audit:    audit,
		log:      log.With().Str("component", "purchasing").Logger(),
	}
}

// ReceivePurchaseInput entrada de una recepción de mercancía.
type ReceivePurchaseInput struct {
	SupplierID string
	LineItems  []entity.LineItem
	ActorID    string
}

// ReceivePurchase registra la compra COM-AAAA-NNNNN y una entrada por producto.
// Solo falla por datos inválidos o productos desconocidos; los servicios no tocan el inventario.
func (uc *UseCase) ReceivePurchase(ctx context.Context, in ReceivePurchaseInput) (*entity.Purchase, error) {
	if in.SupplierID == "" {
		return nil, fmt.Errorf("%w: supplier_id requerido", domain.ErrInvalidInput)
	}
	if err := entity.ValidateLineItems(in.LineItems); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	total, err := entity.TotalOf(in.LineItems, decimal.Zero)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	lines := productLines(in.LineItems)
	now := time.Now().UTC()
	var (
		purchase *entity.Purchase
		movs     []*entity.StockMovement
	)
	err = uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		movs = nil
		seq, err := repos.Numbers.Next(ctx, entity.PrefixPurchase, now.Year())
		if err != nil {
			return fmt.Errorf("consecutivo %s: %w", entity.PrefixPurchase, err)
		}
		purchase = &entity.Purchase{
			ID:         uuid.New().String(),
			Number:     entity.FormatDocumentNumber(entity.PrefixPurchase, now.Year(), seq),
			SupplierID: in.SupplierID,
			LineItems:  entity.CloneLineItems(in.LineItems),
			TotalValue: total,
			CreatedBy:  in.ActorID,
			CreatedAt:  now,
		}
		for _, l := range lines {
			unit := l.UnitValue
			mov, err := uc.ledger.AdjustInTx(ctx, repos, inventory.AdjustInput{
				ProductID:         l.ReferenceID,
				Delta:             l.Quantity,
				Kind:              entity.MovementKindInflow,
				Reason:            "compra",
				ReferenceDocument: purchase.Number,
				ActorID:           in.ActorID,
				UnitValue:         &unit,
			})
			if err != nil {
				return fmt.Errorf("compra %s: %w", purchase.Number, err)
			}
			movs = append(movs, mov)
		}
		return repos.Purchases.Create(ctx, purchase)
	})
	if err != nil {
		return nil, err
	}

	uc.ledger.AfterCommit(ctx, movs...)
	uc.log.Info().
		Str("purchase_id", purchase.ID).
		Str("number", purchase.Number).
		Str("supplier_id", purchase.SupplierID).
		Int("inflows", len(movs)).
		Msg("compra recibida")
	if err := uc.audit.Record(ctx, ports.AuditEvent{
		Type: ports.EventPurchaseReceived, AggregateType: ports.AggregatePurchase, AggregateID: purchase.ID,
		ActorID: in.ActorID, Data: map[string]any{"number": purchase.Number, "total": total.String()}, OccurredAt: now,
	}); err != nil {
		uc.log.Error().Err(err).Str("purchase_id", purchase.ID).Msg("no se pudo registrar el evento de auditoría")
	}
	return purchase, nil
}

// GetPurchase obtiene una compra por ID.
func (uc *UseCase) GetPurchase(ctx context.Context, id string) (*entity.Purchase, error) {
	p, err := uc.repos.Purchases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: compra %s", domain.ErrNotFound, id)
	}
	return p, nil
}

// productLines agrupa por producto (cantidad sumada, valor unitario promedio ponderado)
// y ordena por ID para tomar los bloqueos siempre en el mismo orden.
func productLines(items []entity.LineItem) []entity.LineItem {
	byID := make(map[string]*entity.LineItem)
	value := make(map[string]decimal.Decimal)
	for _, it := range items {
		if !it.IsProduct() {
			continue
		}
		l, ok := byID[it.ReferenceID]
		if !ok {
			l = &entity.LineItem{ReferenceID: it.ReferenceID, ReferenceKind: it.ReferenceKind}
			byID[it.ReferenceID] = l
		}
		l.Quantity += it.Quantity
		value[it.ReferenceID] = value[it.ReferenceID].Add(it.Subtotal())
	}
	out := make([]entity.LineItem, 0, len(byID))
	for id, l := range byID {
		l.UnitValue = value[id].Div(decimal.NewFromInt(l.Quantity)).Round(4)
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReferenceID < out[j].ReferenceID })
	return out
}
