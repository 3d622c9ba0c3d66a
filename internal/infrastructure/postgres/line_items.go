package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// itemTable tabla hija de líneas de un documento comercial.
type itemTable struct {
	name       string
	foreignKey string
}

var (
	quoteItems    = itemTable{name: "quote_items", foreignKey: "quote_id"}
	orderItems    = itemTable{name: "order_items", foreignKey: "order_id"}
	purchaseItems = itemTable{name: "purchase_items", foreignKey: "purchase_id"}
)

type lineItemRow struct {
	Position      int             `db:"position"`
	ReferenceID   string          `db:"reference_id"`
	ReferenceKind string          `db:"reference_kind"`
	Description   string          `db:"description"`
	Quantity      int64           `db:"quantity"`
	UnitValue     decimal.Decimal `db:"unit_value"`
}

func (t itemTable) insert(ctx context.Context, q Querier, documentID string, items []entity.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	ins := psql.Insert(t.name).Columns(t.foreignKey, "position", "reference_id", "reference_kind", "description", "quantity", "unit_value")
	for i, it := range items {
		ins = ins.Values(documentID, i+1, it.ReferenceID, it.ReferenceKind, it.Description, it.Quantity, it.UnitValue)
	}
	sql, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build insert %s: %w", t.name, err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	return nil
}

func (t itemTable) load(ctx context.Context, q Querier, documentID string) ([]entity.LineItem, error) {
	sql, args, err := psql.Select("position", "reference_id", "reference_kind", "description", "quantity", "unit_value").
		From(t.name).
		Where(squirrel.Eq{t.foreignKey: documentID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s: %w", t.name, err)
	}
	var rows []lineItemRow
	if err := pgxscan.Select(ctx, q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", t.name, err)
	}
	items := make([]entity.LineItem, len(rows))
	for i, r := range rows {
		items[i] = entity.LineItem{
			ReferenceID:   r.ReferenceID,
			ReferenceKind: r.ReferenceKind,
			Description:   r.Description,
			Quantity:      r.Quantity,
			UnitValue:     r.UnitValue,
		}
	}
	return items, nil
}
