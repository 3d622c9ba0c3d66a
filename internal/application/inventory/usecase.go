package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// Config parámetros del libro de inventario.
type Config struct {
	// AllowNegativeRecount permite que un conteo físico deje existencias negativas.
	AllowNegativeRecount bool
}

// LedgerUseCase es el único escritor de movimientos de inventario y de la cantidad
// cacheada del producto. Cada ajuste bloquea la fila del producto (SELECT FOR UPDATE),
// encadena el movimiento con el anterior y actualiza el agregado en la misma transacción.
type LedgerUseCase struct {
	txRunner repository.TxRunner
	repos    repository.Repos
	audit    ports.AuditSink
	cfg      Config
	log      zerolog.Logger
}

// NewLedgerUseCase construye el caso de uso. repos son los repositorios fuera de transacción
// (lecturas de historial y listados).
func NewLedgerUseCase(
	txRunner repository.TxRunner,
	repos repository.Repos,
	audit ports.AuditSink,
	cfg Config,
	log zerolog.Logger,
) *LedgerUseCase {
	if audit == nil {
		audit = ports.NopAuditSink{}
	}
	return &LedgerUseCase{
		txRunner: txRunner,
		repos:    repos,
		audit:    audit,
		cfg:      cfg,
		log:      log.With().Str("component", "ledger").Logger(),
	}
}

// AdjustInput entrada de un ajuste de inventario.
// Inflow exige Delta > 0, outflow Delta < 0 y adjustment Delta != 0.
type AdjustInput struct {
	ProductID         string
	Delta             int64
	Kind              string
	Reason            string
	ReferenceDocument string
	ActorID           string
	UnitValue         *decimal.Decimal
}

// RecountInput entrada de un conteo físico: la cantidad contada reemplaza a la del libro.
type RecountInput struct {
	ProductID         string
	NewCount          int64
	Reason            string
	ReferenceDocument string
	ActorID           string
}

func validateAdjust(in AdjustInput) error {
	if in.ProductID == "" {
		return fmt.Errorf("%w: product_id requerido", domain.ErrInvalidInput)
	}
	if in.Delta == 0 {
		return fmt.Errorf("%w: la cantidad del ajuste no puede ser cero", domain.ErrInvalidInput)
	}
	switch in.Kind {
	case entity.MovementKindInflow:
		if in.Delta < 0 {
			return fmt.Errorf("%w: una entrada debe ser positiva", domain.ErrInvalidInput)
		}
	case entity.MovementKindOutflow:
		if in.Delta > 0 {
			return fmt.Errorf("%w: una salida debe ser negativa", domain.ErrInvalidInput)
		}
	case entity.MovementKindAdjustment:
	case entity.MovementKindRecount:
		return fmt.Errorf("%w: use Recount para conteos físicos", domain.ErrInvalidInput)
	default:
		return fmt.Errorf("%w: tipo de movimiento %q", domain.ErrInvalidInput, in.Kind)
	}
	if in.UnitValue != nil && in.UnitValue.IsNegative() {
		return fmt.Errorf("%w: valor unitario negativo", domain.ErrInvalidInput)
	}
	return nil
}

// Adjust registra un movimiento en su propia transacción.
func (uc *LedgerUseCase) Adjust(ctx context.Context, in AdjustInput) (*entity.StockMovement, error) {
	if err := validateAdjust(in); err != nil {
		return nil, err
	}
	var mov *entity.StockMovement
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		var err error
		mov, err = uc.AdjustInTx(ctx, repos, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.AfterCommit(ctx, mov)
	return mov, nil
}

// AdjustInTx registra el movimiento con los repositorios de la transacción del caller
// (pedidos, cotizaciones y compras), de modo que el movimiento se confirma o se descarta
// junto con el documento. El caller debe invocar AfterCommit tras el commit.
func (uc *LedgerUseCase) AdjustInTx(ctx context.Context, repos repository.Repos, in AdjustInput) (*entity.StockMovement, error) {
	if err := validateAdjust(in); err != nil {
		return nil, err
	}
	product, last, err := uc.lockProduct(ctx, repos, in.ProductID)
	if err != nil {
		return nil, err
	}
	before := chainQuantity(last)
	if in.Delta < 0 && before+in.Delta < 0 && !product.AllowBackorder {
		return nil, fmt.Errorf("%w: producto %s tiene %d, se solicitan %d",
			domain.ErrInsufficientStock, product.ID, before, -in.Delta)
	}
	return uc.appendMovement(ctx, repos, product, last, in.Kind, in.Delta, movementMeta{
		reason:    in.Reason,
		reference: in.ReferenceDocument,
		actorID:   in.ActorID,
		unitValue: in.UnitValue,
	})
}

// Recount registra un conteo físico. El delta es NewCount - cantidad actual y no aplica
// la validación de existencias negativas del ajuste.
func (uc *LedgerUseCase) Recount(ctx context.Context, in RecountInput) (*entity.StockMovement, error) {
	if in.ProductID == "" {
		return nil, fmt.Errorf("%w: product_id requerido", domain.ErrInvalidInput)
	}
	if in.NewCount < 0 && !uc.cfg.AllowNegativeRecount {
		return nil, fmt.Errorf("%w: el conteo no puede ser negativo", domain.ErrInvalidInput)
	}
	var mov *entity.StockMovement
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		product, last, err := uc.lockProduct(ctx, repos, in.ProductID)
		if err != nil {
			return err
		}
		delta := in.NewCount - chainQuantity(last)
		if delta == 0 {
			return fmt.Errorf("%w: el conteo coincide con el libro (%d)", domain.ErrInvalidInput, in.NewCount)
		}
		mov, err = uc.appendMovement(ctx, repos, product, last, entity.MovementKindRecount, delta, movementMeta{
			reason:    in.Reason,
			reference: in.ReferenceDocument,
			actorID:   in.ActorID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	uc.AfterCommit(ctx, mov)
	return mov, nil
}

// History devuelve los movimientos del producto en orden de inserción.
func (uc *LedgerUseCase) History(ctx context.Context, productID string, filter repository.MovementFilter) ([]*entity.StockMovement, error) {
	product, err := uc.repos.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: producto %s", domain.ErrNotFound, productID)
	}
	return uc.repos.Movements.ListByProduct(ctx, productID, filter)
}

// VerifyResult comparación entre la cadena de movimientos y el agregado cacheado.
type VerifyResult struct {
	ProductID         string
	CachedQuantity    int64
	ProjectedQuantity int64
	Movements         int
	Consistent        bool
	Reconciled        bool
}

// Verify reproduce la cadena del producto y la compara con la cantidad cacheada.
func (uc *LedgerUseCase) Verify(ctx context.Context, productID string) (*VerifyResult, error) {
	return uc.verify(ctx, productID, false)
}

// Reconcile igual que Verify, pero reescribe el agregado desde la cadena si difieren.
func (uc *LedgerUseCase) Reconcile(ctx context.Context, productID string) (*VerifyResult, error) {
	return uc.verify(ctx, productID, true)
}

func (uc *LedgerUseCase) verify(ctx context.Context, productID string, fix bool) (*VerifyResult, error) {
	var res *VerifyResult
	err := uc.txRunner.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		product, err := repos.Products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return fmt.Errorf("%w: producto %s", domain.ErrNotFound, productID)
		}
		movs, err := repos.Movements.ListByProduct(ctx, productID, repository.MovementFilter{})
		if err != nil {
			return err
		}
		projected, err := inventory.Project(movs)
		if err != nil {
			return fmt.Errorf("producto %s: %w", productID, err)
		}
		res = &VerifyResult{
			ProductID:         productID,
			CachedQuantity:    product.QuantityOnHand,
			ProjectedQuantity: projected,
			Movements:         len(movs),
			Consistent:        projected == product.QuantityOnHand,
		}
		if res.Consistent || !fix {
			return nil
		}
		if err := repos.Products.UpdateStock(ctx, productID, product.QuantityOnHand, projected, product.Cost); err != nil {
			return err
		}
		res.Reconciled = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !res.Consistent {
		uc.log.Warn().
			Str("product_id", productID).
			Int64("cached", res.CachedQuantity).
			Int64("projected", res.ProjectedQuantity).
			Bool("reconciled", res.Reconciled).
			Msg("agregado de inventario desalineado con la cadena")
	}
	return res, nil
}

// AfterCommit reporta los movimientos confirmados y alerta existencias bajo el mínimo.
// Las fallas del sink solo se registran.
func (uc *LedgerUseCase) AfterCommit(ctx context.Context, movements ...*entity.StockMovement) {
	for _, m := range movements {
		uc.log.Info().
			Str("movement_id", m.ID).
			Str("product_id", m.ProductID).
			Str("kind", m.Kind).
			Int64("delta", m.QuantityDelta).
			Int64("after", m.QuantityAfter).
			Str("reference", m.ReferenceDocument).
			Msg("movimiento de inventario registrado")
		uc.record(ctx, ports.AuditEvent{
			Type:          ports.EventMovementAppended,
			AggregateType: ports.AggregateStock,
			AggregateID:   m.ProductID,
			ActorID:       m.ActorID,
			Data: map[string]any{
				"movement_id": m.ID,
				"seq":         m.Seq,
				"kind":        m.Kind,
				"delta":       m.QuantityDelta,
				"before":      m.QuantityBefore,
				"after":       m.QuantityAfter,
				"reference":   m.ReferenceDocument,
			},
			OccurredAt: m.CreatedAt,
		})
		uc.checkMinimum(ctx, m)
	}
}

func (uc *LedgerUseCase) checkMinimum(ctx context.Context, m *entity.StockMovement) {
	if m.QuantityDelta >= 0 {
		return
	}
	product, err := uc.repos.Products.GetByID(ctx, m.ProductID)
	if err != nil || product == nil || !product.BelowMinimum(m.QuantityAfter) {
		return
	}
	uc.log.Warn().
		Str("product_id", product.ID).
		Str("sku", product.SKU).
		Int64("quantity", m.QuantityAfter).
		Int64("minimum", product.MinimumQuantity).
		Msg("existencias por debajo del mínimo")
	uc.record(ctx, ports.AuditEvent{
		Type:          ports.EventBelowMinimum,
		AggregateType: ports.AggregateStock,
		AggregateID:   product.ID,
		ActorID:       m.ActorID,
		Data:          map[string]any{"quantity": m.QuantityAfter, "minimum": product.MinimumQuantity},
		OccurredAt:    m.CreatedAt,
	})
}

func (uc *LedgerUseCase) record(ctx context.Context, ev ports.AuditEvent) {
	if err := uc.audit.Record(ctx, ev); err != nil {
		uc.log.Error().Err(err).Str("event", ev.AggregateType+"."+ev.Type).Msg("no se pudo registrar el evento de auditoría")
	}
}

// lockProduct bloquea la fila del producto y obtiene el último eslabón de su cadena.
func (uc *LedgerUseCase) lockProduct(ctx context.Context, repos repository.Repos, productID string) (*entity.Product, *entity.StockMovement, error) {
	product, err := repos.Products.GetForUpdate(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if product == nil {
		return nil, nil, fmt.Errorf("%w: producto %s", domain.ErrNotFound, productID)
	}
	last, err := repos.Movements.LastByProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if q := chainQuantity(last); q != product.QuantityOnHand {
		uc.log.Warn().
			Str("product_id", productID).
			Int64("cached", product.QuantityOnHand).
			Int64("chain", q).
			Msg("cantidad cacheada desalineada, se toma la de la cadena")
	}
	return product, last, nil
}

type movementMeta struct {
	reason    string
	reference string
	actorID   string
	unitValue *decimal.Decimal
}

// appendMovement agrega el eslabón y actualiza el agregado (compare-and-swap sobre la cantidad
// leída bajo bloqueo). Con una entrada valorizada recalcula el costo promedio ponderado.
func (uc *LedgerUseCase) appendMovement(
	ctx context.Context,
	repos repository.Repos,
	product *entity.Product,
	last *entity.StockMovement,
	kind string,
	delta int64,
	meta movementMeta,
) (*entity.StockMovement, error) {
	before := chainQuantity(last)
	after := before + delta

	now := time.Now().UTC()
	seq := int64(1)
	if last != nil {
		seq = last.Seq + 1
		if now.Before(last.CreatedAt) {
			now = last.CreatedAt
		}
	}

	cost := product.Cost
	if meta.unitValue != nil && delta > 0 && kind != entity.MovementKindRecount {
		cost = inventory.CostCalculator(before, product.Cost, delta, *meta.unitValue)
	}

	mov := &entity.StockMovement{
		ID:                uuid.New().String(),
		ProductID:         product.ID,
		Seq:               seq,
		Kind:              kind,
		QuantityDelta:     delta,
		QuantityBefore:    before,
		QuantityAfter:     after,
		UnitValue:         meta.unitValue,
		Reason:            meta.reason,
		ReferenceDocument: meta.reference,
		ActorID:           meta.actorID,
		CreatedAt:         now,
	}
	if err := repos.Movements.Append(ctx, mov); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, err)
		}
		return nil, err
	}
	if err := repos.Products.UpdateStock(ctx, product.ID, product.QuantityOnHand, after, cost); err != nil {
		return nil, err
	}
	return mov, nil
}

func chainQuantity(last *entity.StockMovement) int64 {
	if last == nil {
		return 0
	}
	return last.QuantityAfter
}
