package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

const productsTable = "products"

var productColumns = []string{
	"id", "sku", "name", "price", "cost", "quantity_on_hand", "minimum_quantity",
	"allow_backorder", "created_at", "updated_at",
}

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación de ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// Create persiste un nuevo producto.
func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	sql, args, err := psql.Insert(productsTable).Columns(productColumns...).Values(
		p.ID, p.SKU, p.Name, p.Price, p.Cost, p.QuantityOnHand, p.MinimumQuantity,
		p.AllowBackorder, p.CreatedAt, p.UpdatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert product: %w", err)
	}
	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID obtiene un producto por ID; nil si no existe.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	return r.get(ctx, id, "")
}

// GetBySKU obtiene un producto por código; nil si no existe.
func (r *ProductRepo) GetBySKU(ctx context.Context, sku string) (*entity.Product, error) {
	sql, args, err := psql.Select(productColumns...).From(productsTable).Where(squirrel.Eq{"sku": sku}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select product by sku: %w", err)
	}
	var p entity.Product
	if err := pgxscan.Get(ctx, r.q, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product by sku: %w", err)
	}
	return &p, nil
}

// GetForUpdate obtiene el producto con SELECT … FOR UPDATE.
func (r *ProductRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *ProductRepo) get(ctx context.Context, id, suffix string) (*entity.Product, error) {
	q := psql.Select(productColumns...).From(productsTable).Where(squirrel.Eq{"id": id})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select product: %w", err)
	}
	var p entity.Product
	if err := pgxscan.Get(ctx, r.q, &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// UpdateStock escribe la cantidad cacheada y el costo solo si la cantidad actual es expected.
func (r *ProductRepo) UpdateStock(ctx context.Context, id string, expected, quantity int64, cost decimal.Decimal) error {
	sql, args, err := psql.Update(productsTable).
		Set("quantity_on_hand", quantity).
		Set("cost", cost).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id, "quantity_on_hand": expected}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update stock: %w", err)
	}
	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: producto %s", domain.ErrNotFound, id)
	}
	return fmt.Errorf("%w: producto %s cambió (%d != %d)", domain.ErrConcurrencyConflict, id, current.QuantityOnHand, expected)
}

// ListBelowMinimum productos con mínimo configurado y cantidad por debajo, ordenados por SKU.
func (r *ProductRepo) ListBelowMinimum(ctx context.Context, limit int) ([]*entity.Product, error) {
	q := psql.Select(productColumns...).From(productsTable).
		Where(squirrel.Gt{"minimum_quantity": 0}).
		Where("quantity_on_hand < minimum_quantity").
		OrderBy("sku")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list below minimum: %w", err)
	}
	var out []*entity.Product
	if err := pgxscan.Select(ctx, r.q, &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list below minimum: %w", err)
	}
	return out, nil
}
