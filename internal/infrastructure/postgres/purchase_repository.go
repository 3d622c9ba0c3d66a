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

const purchasesTable = "purchases"

var purchaseColumns = []string{"id", "number", "supplier_id", "total_value", "created_by", "created_at"}

var _ repository.PurchaseRepository = (*PurchaseRepo)(nil)

// PurchaseRepo compras recibidas y sus líneas (purchase_items).
type PurchaseRepo struct {
	q Querier
}

// NewPurchaseRepository construye el adaptador.
func NewPurchaseRepository(q Querier) *PurchaseRepo {
	return &PurchaseRepo{q: q}
}

func (r *PurchaseRepo) Create(ctx context.Context, p *entity.Purchase) error {
	sql, args, err := psql.Insert(purchasesTable).Columns(purchaseColumns...).Values(
		p.ID, p.Number, p.SupplierID, p.TotalValue, p.CreatedBy, p.CreatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert purchase: %w", err)
	}
	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return purchaseItems.insert(ctx, r.q, p.ID, p.LineItems)
}

func (r *PurchaseRepo) GetByID(ctx context.Context, id string) (*entity.Purchase, error) {
	sql, args, err := psql.Select(purchaseColumns...).From(purchasesTable).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select purchase: %w", err)
	}
	var p entity.Purchase
	if err := pgxscan.Get(ctx, r.q, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	if p.LineItems, err = purchaseItems.load(ctx, r.q, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}
