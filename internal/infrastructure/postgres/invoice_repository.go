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

const invoicesTable = "invoices"

var invoiceColumns = []string{
	"id", "order_id", "status", "external_reference", "authorization_key", "document_number",
	"last_error", "attempts", "emitting_until", "cancel_justification",
	"created_at", "updated_at", "issued_at", "cancelled_at",
}

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo facturas fiscales. order_id y external_reference son únicos.
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador.
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	sql, args, err := psql.Insert(invoicesTable).Columns(invoiceColumns...).Values(
		inv.ID, inv.OrderID, inv.Status, inv.ExternalReference, inv.AuthorizationKey, inv.DocumentNumber,
		inv.LastError, inv.Attempts, inv.EmittingUntil, inv.CancelJustification,
		inv.CreatedAt, inv.UpdatedAt, inv.IssuedAt, inv.CancelledAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert invoice: %w", err)
	}
	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.getWhere(ctx, squirrel.Eq{"id": id}, false)
}

func (r *InvoiceRepo) GetByOrderID(ctx context.Context, orderID string) (*entity.Invoice, error) {
	return r.getWhere(ctx, squirrel.Eq{"order_id": orderID}, false)
}

func (r *InvoiceRepo) GetByOrderIDForUpdate(ctx context.Context, orderID string) (*entity.Invoice, error) {
	return r.getWhere(ctx, squirrel.Eq{"order_id": orderID}, true)
}

func (r *InvoiceRepo) GetByExternalReference(ctx context.Context, ref string) (*entity.Invoice, error) {
	return r.getWhere(ctx, squirrel.Eq{"external_reference": ref}, false)
}

func (r *InvoiceRepo) GetByExternalReferenceForUpdate(ctx context.Context, ref string) (*entity.Invoice, error) {
	return r.getWhere(ctx, squirrel.Eq{"external_reference": ref}, true)
}

func (r *InvoiceRepo) getWhere(ctx context.Context, where squirrel.Eq, forUpdate bool) (*entity.Invoice, error) {
	q := psql.Select(invoiceColumns...).From(invoicesTable).Where(where)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select invoice: %w", err)
	}
	var inv entity.Invoice
	if err := pgxscan.Get(ctx, r.q, &inv, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return &inv, nil
}

func (r *InvoiceRepo) Update(ctx context.Context, inv *entity.Invoice) error {
	sql, args, err := psql.Update(invoicesTable).SetMap(map[string]any{
		"status":               inv.Status,
		"authorization_key":    inv.AuthorizationKey,
		"document_number":      inv.DocumentNumber,
		"last_error":           inv.LastError,
		"attempts":             inv.Attempts,
		"emitting_until":       inv.EmittingUntil,
		"cancel_justification": inv.CancelJustification,
		"updated_at":           inv.UpdatedAt,
		"issued_at":            inv.IssuedAt,
		"cancelled_at":         inv.CancelledAt,
	}).Where(squirrel.Eq{"id": inv.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("build update invoice: %w", err)
	}
	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: factura %s", domain.ErrNotFound, inv.ID)
	}
	return nil
}
