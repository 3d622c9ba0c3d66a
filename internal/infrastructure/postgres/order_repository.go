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

const ordersTable = "orders"

var orderColumns = []string{
	"id", "number", "customer_id", "quote_id", "status", "discount", "total_value",
	"payment_method", "invoice_id", "created_by", "created_at", "updated_at",
}

var _ repository.OrderRepository = (*OrderRepo)(nil)

// OrderRepo pedidos y sus líneas (order_items). quote_id es único: una cotización genera
// a lo sumo un pedido.
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador.
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

func (r *OrderRepo) Create(ctx context.Context, o *entity.Order) error {
	sql, args, err := psql.Insert(ordersTable).Columns(orderColumns...).Values(
		o.ID, o.Number, o.CustomerID, o.QuoteID, o.Status, o.Discount, o.TotalValue,
		o.PaymentMethod, o.InvoiceID, o.CreatedBy, o.CreatedAt, o.UpdatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert order: %w", err)
	}
	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return orderItems.insert(ctx, r.q, o.ID, o.LineItems)
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	return r.getWhere(ctx, squirrel.Eq{"id": id}, "")
}

// GetForUpdate bloquea la fila del pedido hasta el fin de la transacción.
func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	return r.getWhere(ctx, squirrel.Eq{"id": id}, "FOR UPDATE")
}

func (r *OrderRepo) GetByQuoteID(ctx context.Context, quoteID string) (*entity.Order, error) {
	return r.getWhere(ctx, squirrel.Eq{"quote_id": quoteID}, "")
}

func (r *OrderRepo) getWhere(ctx context.Context, where squirrel.Eq, suffix string) (*entity.Order, error) {
	q := psql.Select(orderColumns...).From(ordersTable).Where(where)
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select order: %w", err)
	}
	var o entity.Order
	if err := pgxscan.Get(ctx, r.q, &o, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o.LineItems, err = orderItems.load(ctx, r.q, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// Update persiste estado, factura vinculada y forma de pago. Las líneas son inmutables.
func (r *OrderRepo) Update(ctx context.Context, o *entity.Order) error {
	sql, args, err := psql.Update(ordersTable).
		Set("status", o.Status).
		Set("invoice_id", o.InvoiceID).
		Set("payment_method", o.PaymentMethod).
		Set("updated_at", o.UpdatedAt).
		Where(squirrel.Eq{"id": o.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update order: %w", err)
	}
	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: pedido %s", domain.ErrNotFound, o.ID)
	}
	return nil
}
