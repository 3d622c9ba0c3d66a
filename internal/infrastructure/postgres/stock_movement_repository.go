package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

const movementsTable = "stock_movements"

var movementColumns = []string{
	"id", "product_id", "seq", "kind", "quantity_delta", "quantity_before", "quantity_after",
	"unit_value", "reason", "reference_document", "actor_id", "created_at",
}

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo libro de movimientos; solo inserta, nunca actualiza ni borra.
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador.
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

// Append inserta el movimiento. Un (product_id, seq) repetido devuelve domain.ErrDuplicate.
func (r *StockMovementRepo) Append(ctx context.Context, m *entity.StockMovement) error {
	sql, args, err := psql.Insert(movementsTable).Columns(movementColumns...).Values(
		m.ID, m.ProductID, m.Seq, m.Kind, m.QuantityDelta, m.QuantityBefore, m.QuantityAfter,
		m.UnitValue, m.Reason, m.ReferenceDocument, m.ActorID, m.CreatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert movement: %w", err)
	}
	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: movimiento %s #%d", domain.ErrDuplicate, m.ProductID, m.Seq)
		}
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// LastByProduct último movimiento de la cadena; nil si no hay.
func (r *StockMovementRepo) LastByProduct(ctx context.Context, productID string) (*entity.StockMovement, error) {
	sql, args, err := psql.Select(movementColumns...).From(movementsTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("seq DESC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build last movement: %w", err)
	}
	var m entity.StockMovement
	if err := pgxscan.Get(ctx, r.q, &m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("last movement: %w", err)
	}
	return &m, nil
}

// ListByProduct movimientos del producto en orden de secuencia.
func (r *StockMovementRepo) ListByProduct(ctx context.Context, productID string, filter repository.MovementFilter) ([]*entity.StockMovement, error) {
	q := psql.Select(movementColumns...).From(movementsTable).
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("seq")
	if filter.Kind != "" {
		q = q.Where(squirrel.Eq{"kind": filter.Kind})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.To})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return r.list(ctx, q)
}

// ListByReference movimientos con el documento de referencia dado, por producto y secuencia.
func (r *StockMovementRepo) ListByReference(ctx context.Context, referenceDocument string) ([]*entity.StockMovement, error) {
	return r.list(ctx, psql.Select(movementColumns...).From(movementsTable).
		Where(squirrel.Eq{"reference_document": referenceDocument}).
		OrderBy("product_id", "seq"))
}

func (r *StockMovementRepo) list(ctx context.Context, q squirrel.SelectBuilder) ([]*entity.StockMovement, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list movements: %w", err)
	}
	var out []*entity.StockMovement
	if err := pgxscan.Select(ctx, r.q, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return out, nil
}
