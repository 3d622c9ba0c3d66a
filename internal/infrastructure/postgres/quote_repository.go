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

const quotesTable = "quotes"

var quoteColumns = []string{
	"id", "number", "customer_id", "status", "valid_until", "discount", "total_value",
	"created_by", "created_at", "updated_at",
}

type quoteRow struct {
	ID         string          `db:"id"`
	Number     string          `db:"number"`
	CustomerID string          `db:"customer_id"`
	Status     string          `db:"status"`
	ValidUntil *time.Time      `db:"valid_until"`
	Discount   decimal.Decimal `db:"discount"`
	TotalValue decimal.Decimal `db:"total_value"`
	CreatedBy  string          `db:"created_by"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

var _ repository.QuoteRepository = (*QuoteRepo)(nil)

// QuoteRepo cotizaciones y sus líneas (quote_items).
type QuoteRepo struct {
	q Querier
}

// NewQuoteRepository construye el adaptador.
func NewQuoteRepository(q Querier) *QuoteRepo {
	return &QuoteRepo{q: q}
}

func (r *QuoteRepo) Create(ctx context.Context, quote *entity.Quote) error {
	var validUntil *time.Time
	if !quote.ValidUntil.IsZero() {
		validUntil = &quote.ValidUntil
	}
	sql, args, err := psql.Insert(quotesTable).Columns(quoteColumns...).Values(
		quote.ID, quote.Number, quote.CustomerID, quote.Status, validUntil, quote.Discount,
		quote.TotalValue, quote.CreatedBy, quote.CreatedAt, quote.UpdatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build insert quote: %w", err)
	}
	if _, err := r.q.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert quote: %w", err)
	}
	return quoteItems.insert(ctx, r.q, quote.ID, quote.LineItems)
}

func (r *QuoteRepo) GetByID(ctx context.Context, id string) (*entity.Quote, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate bloquea la fila de la cotización hasta el fin de la transacción.
func (r *QuoteRepo) GetForUpdate(ctx context.Context, id string) (*entity.Quote, error) {
	return r.get(ctx, id, "FOR UPDATE")
}

func (r *QuoteRepo) get(ctx context.Context, id, suffix string) (*entity.Quote, error) {
	q := psql.Select(quoteColumns...).From(quotesTable).Where(squirrel.Eq{"id": id})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select quote: %w", err)
	}
	var row quoteRow
	if err := pgxscan.Get(ctx, r.q, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get quote: %w", err)
	}
	items, err := quoteItems.load(ctx, r.q, row.ID)
	if err != nil {
		return nil, err
	}
	quote := &entity.Quote{
		ID:         row.ID,
		Number:     row.Number,
		CustomerID: row.CustomerID,
		Status:     row.Status,
		LineItems:  items,
		Discount:   row.Discount,
		TotalValue: row.TotalValue,
		CreatedBy:  row.CreatedBy,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.ValidUntil != nil {
		quote.ValidUntil = *row.ValidUntil
	}
	return quote, nil
}

func (r *QuoteRepo) UpdateStatus(ctx context.Context, id, status string, at time.Time) error {
	sql, args, err := psql.Update(quotesTable).
		Set("status", status).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update quote: %w", err)
	}
	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update quote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: cotización %s", domain.ErrNotFound, id)
	}
	return nil
}
